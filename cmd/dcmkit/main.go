// Command dcmkit is a DICOM curation toolkit: it de-identifies files
// against a policy table, extracts acquisition metadata, reorganizes
// files by series, converts series to NIfTI and transcodes subject
// identifiers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DavidGamba/go-getoptions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dcmkit/internal/anonymizer"
	"dcmkit/internal/convert"
	"dcmkit/internal/dicomio"
	"dcmkit/internal/extract"
	"dcmkit/internal/split"
	"dcmkit/internal/transcode"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	opt := getoptions.New()
	opt.Self("dcmkit", "DICOM de-identification and conversion toolkit")
	debug := opt.Bool("debug", false, opt.Description("enable debug logging"))
	opt.HelpCommand("help", opt.Alias("h"))

	anon := opt.NewCommand("anonymize", "de-identify the DICOM files under a directory")
	anonInput := anon.String("input", "", anon.Required(), anon.Alias("i"),
		anon.Description("directory holding the DICOM files"))
	anonOutput := anon.String("output", "", anon.Alias("o"),
		anon.Description("output directory (default <input>/anonymized)"))
	anonPolicy := anon.String("policy", "",
		anon.Description("de-identification table, JSON (default bundled PS3.15 basic profile)"))
	anonPrivate := anon.String("private-policy", "",
		anon.Description("private tag retain table, JSON (default bundled)"))
	anonRetained := anon.Bool("record-retained", false,
		anon.Description("log retained private tags in the audit trail"))
	anonRecursive := anon.Bool("recursive", false, anon.Alias("r"),
		anon.Description("descend into subdirectories"))
	anonDryRun := anon.Bool("dry-run", false,
		anon.Description("report what would be done without writing"))
	anonRetry := anon.Bool("retry-failed", false,
		anon.Description("clear failed entries from a previous run and retry them"))
	anon.SetCommandFn(func(ctx context.Context, _ *getoptions.GetOpt, _ []string) error {
		stats, err := anonymizer.Run(anonymizer.Config{
			InputDir:       *anonInput,
			OutputDir:      *anonOutput,
			PolicyFile:     *anonPolicy,
			PrivateFile:    *anonPrivate,
			RecordRetained: *anonRetained,
			Recursive:      *anonRecursive,
			DryRun:         *anonDryRun,
			RetryFailed:    *anonRetry,
		})
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Total)
		}
		return nil
	})

	ext := opt.NewCommand("extract", "extract acquisition metadata from a DICOM file")
	extFile := ext.String("file", "", ext.Required(), ext.Alias("f"),
		ext.Description("DICOM file to read"))
	extRequests := ext.StringSlice("request", 1, 99, ext.Alias("r"),
		ext.Description("metadata requests to resolve (default all)"))
	ext.SetCommandFn(func(ctx context.Context, _ *getoptions.GetOpt, _ []string) error {
		return runExtract(*extFile, *extRequests)
	})

	conv := opt.NewCommand("convert", "convert DICOM series to NIfTI with dcm2niix")
	convInput := conv.String("input", "", conv.Required(), conv.Alias("i"),
		conv.Description("directory holding one series, or a tree with --tree"))
	convOutput := conv.String("output", "", conv.Required(), conv.Alias("o"),
		conv.Description("output directory"))
	convTree := conv.Bool("tree", false,
		conv.Description("convert every leaf series directory under the input"))
	convCompress := conv.Bool("compress", true,
		conv.Description("gzip the NIfTI volumes"))
	convFilename := conv.String("filename", "",
		conv.Description("dcm2niix filename template"))
	conv.SetCommandFn(func(ctx context.Context, _ *getoptions.GetOpt, _ []string) error {
		return runConvert(ctx, *convInput, *convOutput, *convFilename, *convTree, *convCompress)
	})

	spl := opt.NewCommand("split", "reorganize a directory of DICOM files by series")
	splInput := spl.String("input", "", spl.Required(), spl.Alias("i"),
		spl.Description("directory holding the DICOM files"))
	splOutput := spl.String("output", "", spl.Required(), spl.Alias("o"),
		spl.Description("destination directory"))
	splSkip := spl.Bool("skip-non-dicom", false,
		spl.Description("skip unreadable files instead of failing"))
	splNoSession := spl.Bool("no-session-check", false,
		spl.Description("do not group by series or verify the session"))
	splNoEncoding := spl.Bool("no-encoding-check", false,
		spl.Description("do not verify the ISO_IR 100 character set"))
	spl.SetCommandFn(func(ctx context.Context, _ *getoptions.GetOpt, _ []string) error {
		_, err := split.New(split.Config{
			InputDir:      *splInput,
			OutputDir:     *splOutput,
			SkipNonDicom:  *splSkip,
			CheckSession:  !*splNoSession,
			CheckEncoding: !*splNoEncoding,
		}).Run()
		return err
	})

	trans := opt.NewCommand("transcode", "assign pseudonymous codes to subject identifiers")
	transTable := trans.String("table", "", trans.Required(), trans.Alias("t"),
		trans.Description("transcoding table, JSON (updated in place)"))
	trans.SetCommandFn(func(ctx context.Context, _ *getoptions.GetOpt, args []string) error {
		return runTranscode(*transTable, args)
	})

	remaining, err := opt.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel, done := getoptions.InterruptContext()
	defer func() { cancel(); <-done }()

	if err := opt.Dispatch(ctx, remaining); err != nil {
		if errors.Is(err, getoptions.ErrorHelpCalled) {
			return 1
		}
		log.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}

func runExtract(filePath string, requests []string) error {
	ds, err := dicomio.ReadFileMetadataOnly(filePath)
	if err != nil {
		return err
	}

	if len(requests) == 0 {
		requests = extract.Names()
	}

	results := make(map[string]any, len(requests))
	for _, name := range requests {
		value, err := extract.Get(ds, name)
		if err != nil {
			return err
		}
		results[name] = value
	}

	data, err := json.MarshalIndent(results, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runConvert(ctx context.Context, input, output, filename string, tree, compress bool) error {
	converter, err := convert.NewConverter()
	if err != nil {
		return err
	}

	if tree {
		_, err := converter.ConvertTree(ctx, input, output, compress)
		return err
	}

	result, err := converter.Convert(ctx, convert.Request{
		InputDir:  input,
		OutputDir: output,
		Filename:  filename,
		Compress:  compress,
	})
	if err != nil {
		return err
	}
	for _, image := range result.Images {
		fmt.Println(image)
	}
	return nil
}

func runTranscode(tablePath string, sids []string) error {
	if len(sids) == 0 {
		return errors.New("no subject identifiers given")
	}

	table, err := transcode.LoadTable(tablePath)
	if err != nil {
		return err
	}
	codes := table.Transcode(sids)
	if err := table.Save(); err != nil {
		return err
	}

	for i, sid := range sids {
		fmt.Printf("%s\t%s\n", sid, codes[i])
	}
	return nil
}
