package cmd

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	exportOutput      string
	exportSkipLibrary bool
)

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Bundle a simulation for external storage",
	Long: `Create a tar.gz archive of a simulation directory for backup or transfer.

Unity's Library, Temp and Logs folders are skipped unless
--skip-library=false is given.

Examples:
  simforge export GreenEColi
  simforge export GreenEColi --output backups/green.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file path (default: <name>.tar.gz)")
	exportCmd.Flags().BoolVar(&exportSkipLibrary, "skip-library", true, "Skip Unity's regenerated Library and Temp folders")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	sim, err := a.store.Get(args[0])
	if err != nil {
		return err
	}

	outputFile := exportOutput
	if outputFile == "" {
		outputFile = sim.Name + ".tar.gz"
	}

	fmt.Printf("Exporting %s to: %s\n", sim.Name, outputFile)

	n, err := createArchive(a.fs, outputFile, sim.Path, sim.Name)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if info, err := os.Stat(outputFile); err == nil {
		fmt.Printf("\n✓ Archive created: %s (%d files, %s)\n", outputFile, n, humanize.Bytes(uint64(info.Size())))
	} else {
		fmt.Printf("\n✓ Archive created: %s (%d files)\n", outputFile, n)
	}

	return nil
}

// skippedDirs are regenerated by the editor and not worth archiving.
var skippedDirs = map[string]bool{"Library": true, "Temp": true, "Logs": true}

// createArchive writes root into a gzipped tarball below prefix and
// returns the number of regular files written.
func createArchive(fsys afero.Fs, filename, root, prefix string) (int, error) {
	outFile, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	files := 0
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		if info.IsDir() && exportSkipLibrary && skippedDirs[relPath] {
			return filepath.SkipDir
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(filepath.Join(prefix, relPath))

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			file, err := fsys.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := io.Copy(tarWriter, file); err != nil {
				return err
			}
			files++
		}

		return nil
	})
	if err != nil {
		return files, err
	}

	if err := tarWriter.Close(); err != nil {
		return files, err
	}
	if err := gzWriter.Close(); err != nil {
		return files, err
	}
	return files, outFile.Close()
}
