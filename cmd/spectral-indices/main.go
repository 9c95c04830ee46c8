package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lsrd-tools/spectral-indices/internal/notification"
	"github.com/lsrd-tools/spectral-indices/internal/pipeline"
	"github.com/lsrd-tools/spectral-indices/internal/quicklook"
	"github.com/lsrd-tools/spectral-indices/internal/report"
	"github.com/lsrd-tools/spectral-indices/internal/si"
)

var (
	optXML       string
	optTOA       bool
	optGeoTIFF   bool
	optGroupVI   bool
	optVerbose   bool
	optQuiet     bool
	optStatsCSV  string
	optQuicklook bool
	optIndices   = map[si.Key]*bool{}
)

var rootCmd = &cobra.Command{
	Use:   "spectral-indices",
	Short: "Compute spectral index products from a reflectance scene",
	Long: `Computes spectral index band products (NDVI, EVI, SAVI, MSAVI, NDMI,
NBR, NBR2) from the surface or top-of-atmosphere reflectance bands of a
scene described by an ESPA XML metadata file.

Output bands are scaled int16 raw binary files written beside the input
bands, each with an ENVI header, and are appended to the scene's XML
metadata. Re-running with the same flags overwrites the previous outputs.

Examples:

  spectral-indices --xml LC80400332013190LGN00.xml --ndvi --nbr
  spectral-indices --xml scene.xml --toa --ndvi --verbose
  spectral-indices --xml scene.xml --ndvi --evi --savi --msavi --group-vi`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&optXML, "xml", "", "path to the scene's XML metadata file (required)")
	rootCmd.MarkFlagRequired("xml")

	flags.BoolVar(&optTOA, "toa", false, "process top-of-atmosphere reflectance instead of surface reflectance")
	flags.BoolVar(&optGeoTIFF, "gtiff", false, "read band files as GeoTIFF instead of raw binary")
	flags.BoolVar(&optGroupVI, "group-vi", false, "name the vegetation index outputs under a shared _vi_ identity")
	flags.BoolVar(&optVerbose, "verbose", false, "print processing diagnostics")
	flags.BoolVar(&optQuiet, "quiet", false, "suppress the banner and progress bar")
	flags.StringVar(&optStatsCSV, "stats", "", "write per-band statistics to this CSV file")
	flags.BoolVar(&optQuicklook, "quicklook", false, "render a browse PNG per output band")

	for _, def := range si.Catalog {
		enabled := new(bool)
		optIndices[def.Key] = enabled
		flags.BoolVar(enabled, string(def.Key), false, "compute the "+def.LongName)
	}
}

func printBanner() {
	banner := figure.NewFigure("Spectral", "isometric1", true)
	color.Cyan(banner.String())
	fmt.Println()
}

func selectedIndices() []si.Key {
	var keys []si.Key
	for _, def := range si.Catalog {
		if *optIndices[def.Key] {
			keys = append(keys, def.Key)
		}
	}
	return keys
}

func run() error {
	if !optQuiet {
		printBanner()
	}

	cfg := pipeline.Config{
		XMLPath:  optXML,
		Indices:  selectedIndices(),
		TOA:      optTOA,
		Verbose:  optVerbose,
		Progress: !optQuiet,
	}
	if optGeoTIFF {
		cfg.Format = pipeline.FormatGeoTIFF
	}
	if optGroupVI {
		cfg.Grouping = pipeline.GroupedVegetationFiles
	}

	rep, err := pipeline.Run(cfg)
	if err != nil {
		color.Red("Processing failed: %v", err)
		if nerr := notification.SendFailure(sceneFromPath(optXML), err.Error()); nerr != nil {
			color.Yellow("Failure notification not delivered: %v", nerr)
		}
		return err
	}

	color.Green("Scene %s: %d output bands in %d blocks (%s)",
		rep.SceneID, len(rep.OutputBands), rep.Blocks, rep.Elapsed.Round(10*time.Millisecond))
	for i, name := range rep.OutputBands {
		fmt.Printf("  %-10s %s\n", name, rep.OutputFiles[i])
	}

	if optStatsCSV != "" {
		if err := report.WriteCSV(optStatsCSV, rep.Stats); err != nil {
			return fmt.Errorf("writing statistics: %w", err)
		}
		fmt.Printf("Statistics written to %s\n", optStatsCSV)
	}

	if optQuicklook {
		for _, path := range rep.OutputFiles {
			pngPath := strings.TrimSuffix(path, ".img") + ".png"
			if err := quicklook.Render(path, pngPath, rep.Nlines, rep.Nsamps, quicklook.Options{}); err != nil {
				return fmt.Errorf("rendering quicklook: %w", err)
			}
			fmt.Printf("Quicklook written to %s\n", pngPath)
		}
	}

	detail := fmt.Sprintf("%d bands: %s", len(rep.OutputBands), strings.Join(rep.OutputBands, ", "))
	if nerr := notification.SendSuccess(rep.SceneID, detail); nerr != nil {
		color.Yellow("Success notification not delivered: %v", nerr)
	}
	return nil
}

func sceneFromPath(xmlPath string) string {
	base := xmlPath
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".xml")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		color.Yellow("Environment file not loaded: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
