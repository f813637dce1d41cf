package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/ruleset"
	"github.com/wehubfusion/Daedalus/pkg/script"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

func newTransformCmd(verbose *bool) *cobra.Command {
	var (
		rulesetPath string
		outputPath  string
		inPlace     bool
		pretty      bool
		contextVals []string
	)

	cmd := &cobra.Command{
		Use:   "transform [input]",
		Short: "Apply a ruleset to an XML document",
		Long: `Apply a YAML ruleset to an XML document and print the transformed
document. The input argument is a file path, or "-" to read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inPlace {
				if outputPath != "" {
					return fmt.Errorf("--in-place and --output are mutually exclusive")
				}
				if len(args) == 0 || args[0] == "-" {
					return fmt.Errorf("--in-place requires an input file")
				}
			}
			logger, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			rs, err := ruleset.LoadFile(rulesetPath)
			if err != nil {
				return fmt.Errorf("failed to load ruleset: %w", err)
			}

			engine := script.NewEngine(script.DefaultPoolSize)
			defer engine.Close()

			tr, err := rs.Build(ruleset.NewRegistry(), engine, logger)
			if err != nil {
				return fmt.Errorf("failed to build ruleset: %w", err)
			}

			doc, err := readDocument(args)
			if err != nil {
				return err
			}

			values, err := parseContextValues(contextVals)
			if err != nil {
				return err
			}

			result, err := tr.Execute(cmd.Context(), doc, transform.WithValues(values))
			if err != nil {
				return err
			}

			if inPlace {
				input := args[0]
				if err := os.Rename(input, input+".orig"); err != nil {
					return fmt.Errorf("failed to back up input: %w", err)
				}
				return writeResult(result, input, pretty)
			}
			return writeResult(result, outputPath, pretty)
		},
	}

	cmd.Flags().StringVarP(&rulesetPath, "ruleset", "r", "", "path to the YAML ruleset (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write output to a file instead of stdout")
	cmd.Flags().BoolVar(&inPlace, "in-place", false, "rewrite the input file, keeping the original as <input>.orig")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the output document")
	cmd.Flags().StringArrayVar(&contextVals, "set", nil, "context value as key=value (repeatable)")
	cmd.MarkFlagRequired("ruleset")

	return cmd
}

func readDocument(args []string) (*dom.Node, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return dom.Parse(data)
	}
	return dom.ParseFile(args[0])
}

func parseContextValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context value %q, expected key=value", pair)
		}
		values[key] = value
	}
	return values, nil
}

func writeResult(result any, outputPath string, pretty bool) error {
	var rendered string
	switch v := result.(type) {
	case *dom.Node:
		if pretty {
			rendered = dom.MarshalIndent(v)
		} else {
			rendered = dom.Marshal(v)
		}
	case nil:
		rendered = ""
	default:
		rendered = fmt.Sprint(v)
	}

	if outputPath == "" {
		fmt.Println(rendered)
		return nil
	}
	return os.WriteFile(outputPath, []byte(rendered+"\n"), 0o644)
}
