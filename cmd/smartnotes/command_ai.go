package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"smartnotes/internal/ai"
	"smartnotes/internal/apperr"
	"smartnotes/internal/types"
)

func newAICommand(wiring commandWiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "AI text enhancement and OCR",
	}
	cmd.AddCommand(newAIEnhanceCommand(wiring), newAIOCRCommand(wiring))
	return cmd
}

func newAIEnhanceCommand(wiring commandWiring) *cobra.Command {
	var operation, file, noteID string
	cmd := &cobra.Command{
		Use:   "enhance [text]",
		Short: "Enhance or summarize text, a file or a note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := ai.ParseOperation(operation)
			if err != nil {
				return err
			}
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.requireSession(); err != nil {
					return err
				}
				text, _, err := readText(cmd, strings.Join(args, " "), file)
				if err != nil {
					return err
				}
				if noteID != "" {
					if err := rt.notes.Load(cmd.Context()); err != nil {
						return err
					}
					note, err := rt.notes.GetNote(noteID)
					if err != nil {
						return err
					}
					return enhanceNote(cmd, rt, note, op)
				}
				result, err := rt.ai.Enhance(cmd.Context(), text, op)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.ProcessedText)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&operation, "op", "enhance", "operation: enhance or summarize")
	cmd.Flags().StringVar(&file, "file", "", "read the text from a file ('-' for stdin)")
	cmd.Flags().StringVar(&noteID, "note", "", "enhance a note's text and save the result as its content")
	return cmd
}

func enhanceNote(cmd *cobra.Command, rt *runtime, note types.Note, op types.AIOperation) error {
	source := note.OriginalText
	if strings.TrimSpace(source) == "" {
		source = note.Content
	}
	result, err := rt.ai.Enhance(cmd.Context(), source, op)
	if err != nil {
		return err
	}
	updated, err := rt.notes.UpdateNote(cmd.Context(), note.ID, types.NotePatch{Content: types.StringPtr(result.ProcessedText)})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated note %s (%s)\n", updated.Title, updated.ID)
	return nil
}

func newAIOCRCommand(wiring commandWiring) *cobra.Command {
	var operation, folderID, title string
	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract text from an image, optionally into a new note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := ai.ParseOperation(operation)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withRuntime(wiring, func(rt *runtime) error {
				if err := rt.requireSession(); err != nil {
					return err
				}
				result, err := rt.ai.ExtractText(cmd.Context(), args[0], data, op)
				if err != nil {
					return err
				}
				text := result.RecognizedText()
				if folderID == "" {
					fmt.Fprintln(cmd.OutOrStdout(), text)
					fmt.Fprintf(cmd.ErrOrStderr(), "confidence: %.0f%%\n", result.Confidence*100)
					return nil
				}
				if strings.TrimSpace(text) == "" {
					return apperr.Validation("ocr", "image", "no text recognised in the image")
				}
				if err := rt.notes.Load(cmd.Context()); err != nil {
					return err
				}
				if title == "" {
					title = "Scanned note"
				}
				note, err := rt.notes.CreateNote(cmd.Context(), folderID, title, text)
				if err != nil {
					return err
				}
				if result.ProcessedText != "" && result.ProcessedText != text {
					note, err = rt.notes.UpdateNote(cmd.Context(), note.ID, types.NotePatch{Content: types.StringPtr(result.ProcessedText)})
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created note %s (%s)\n", note.Title, note.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&operation, "op", "enhance", "operation applied after OCR: enhance or summarize")
	cmd.Flags().StringVar(&folderID, "folder", "", "create a note with the recognised text in this folder")
	cmd.Flags().StringVar(&title, "title", "", "title of the created note")
	return cmd
}
