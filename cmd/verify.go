package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/simforge/internal/fsutil"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/ollama"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the build tool, directories and language models",
	Long: `Check that everything simforge needs is in place:
  - the Unity editor exists and is the configured version
  - the template, simulations directory and workspace root exist
  - Ollama is reachable and the configured models are installed

Example:
  simforge verify`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	c := a.cfg

	failed := 0
	if err := c.Verify(a.fs); err != nil {
		for _, e := range unwrapJoined(err) {
			fmt.Printf("✗ %s\n", detail(e))
			failed++
		}
	} else {
		fmt.Printf("✓ Build tool: %s\n", c.Tool.Executable)
		fmt.Printf("✓ Workspace root: %s\n", c.Workspace.Root)
		fmt.Printf("✓ Template: %s\n", c.Paths.Template)
	}

	if fsutil.IsDir(a.fs, c.Paths.Simulations) {
		fmt.Printf("✓ Simulations: %s\n", c.Paths.Simulations)
	} else {
		fmt.Printf("✗ simulations directory %s does not exist (run simforge init)\n", c.Paths.Simulations)
		failed++
	}

	if !ollama.IsAvailable(c.LLM.URL) {
		fmt.Printf("✗ ollama is not running at %s\n", c.LLM.URL)
		failed++
	} else {
		ctx, stop := interruptContext()
		defer stop()
		for _, model := range []string{c.LLM.Model, c.LLM.ValidatorModel, c.LLM.EmbeddingModel} {
			client, err := ollama.NewClient(c.LLM.URL, model, c.LLM.Timeout)
			if err == nil {
				err = client.CheckModel(ctx)
			}
			if err != nil {
				fmt.Printf("✗ model %s: %v\n", model, err)
				failed++
				continue
			}
			fmt.Printf("✓ Model: %s\n", model)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("\n✓ Everything is ready")
	return nil
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func detail(err error) string {
	var e *models.Error
	if errors.As(err, &e) {
		return e.Detail()
	}
	return err.Error()
}
