package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrWong99/intervox/internal/config"
	"github.com/MrWong99/intervox/internal/grading"
	"github.com/MrWong99/intervox/internal/observe"
	"github.com/MrWong99/intervox/internal/questions"
	"github.com/MrWong99/intervox/internal/resilience"
	"github.com/MrWong99/intervox/internal/resume"
)

var questionsCmd = &cobra.Command{
	Use:   "questions <resume>",
	Short: "Print the interview questions generated for a résumé",
	Long: `Extract the text of a PDF, DOCX or plain-text résumé, build the
candidate profile and print the questions an interview would ask.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, err := offlineLLM(cfg)
		if err != nil {
			return err
		}

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text, err := resume.ExtractText(filepath.Base(path), data)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		profile, err := resume.NewExtractor(provider).Extract(ctx, text)
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			count = cfg.Interview.QuestionCount
		}
		qs := questions.New(provider, questions.WithCount(count)).Generate(ctx, profile)
		if len(qs) == 0 {
			return fmt.Errorf("no questions generated")
		}

		out := cmd.OutOrStdout()
		for i, q := range qs {
			fmt.Fprintf(out, "%d. %s\n", i+1, q)
		}
		return nil
	},
}

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a single answer and print the feedback as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		question, _ := cmd.Flags().GetString("question")
		answer, _ := cmd.Flags().GetString("answer")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		provider, err := offlineLLM(cfg)
		if err != nil {
			return err
		}

		fb, err := grading.NewLLMGrader(provider).Evaluate(cmd.Context(), question, answer)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fb)
	},
}

func init() {
	questionsCmd.Flags().Int("count", 0, "number of questions (default from config)")

	gradeCmd.Flags().String("question", "", "interview question")
	gradeCmd.Flags().String("answer", "", "candidate answer")
	_ = gradeCmd.MarkFlagRequired("question")
	_ = gradeCmd.MarkFlagRequired("answer")

	rootCmd.AddCommand(questionsCmd, gradeCmd)
}

// offlineLLM builds the configured LLM failover group for a one-shot
// command.
func offlineLLM(cfg *config.Config) (*resilience.LLMFallback, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	return buildLLM(cfg, reg, observe.DefaultMetrics())
}
