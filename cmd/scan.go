package main

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/serialscan/internal/arbitration"
	"github.com/sells-group/serialscan/internal/imaging"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/session"
)

var (
	scanVariant string
	scanAccept  bool
	scanEdit    string
	scanCamera  bool
)

// caseReport is the JSON printed for a scanned case.
type caseReport struct {
	CaseID  string              `json:"case_id"`
	Outcome arbitration.Outcome `json:"outcome"`
	Record  *model.CaseRecord   `json:"record,omitempty"`
	Pending bool                `json:"pending_review"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Scan one label image",
	Long: "Runs OCR, extraction and verification on an image and prints the outcome. " +
		"The result is saved when the variant auto-saves, or with --accept or --edit.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		img, err := imaging.Open(args[0])
		if err != nil {
			return err
		}

		env, err := initScanEnv(ctx, "scan")
		if err != nil {
			return err
		}
		defer env.Close()

		sess, err := env.NewSession(scanVariant)
		if err != nil {
			return err
		}

		report, err := runCase(ctx, sess, env.Prepare(img), scanCamera, scanAccept, scanEdit)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, report)
	},
}

// runCase drives one case through the session: capture, scan and the
// requested review action.
func runCase(ctx context.Context, sess *session.Session, img image.Image, camera, accept bool, edit string) (*caseReport, error) {
	var c *session.Case
	if camera {
		sess.StartCamera()
		c = sess.PressScan()
	} else {
		sess.Upload(img)
		c = sess.PressScan()
	}

	out, rec, err := sess.Scan(ctx, img)
	if err != nil {
		return nil, eris.Wrap(err, "scan")
	}

	if rec == nil {
		switch {
		case edit != "":
			if err := sess.Edit(); err != nil {
				return nil, err
			}
			rec, err = sess.SaveEdited(ctx, edit)
		case accept:
			rec, err = sess.Accept(ctx)
		}
		if err != nil {
			return nil, err
		}
	}

	return &caseReport{
		CaseID:  c.ID,
		Outcome: out,
		Record:  rec,
		Pending: rec == nil && out.Disposition == arbitration.DispositionReview,
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write json")
}

func init() {
	scanCmd.Flags().StringVar(&scanVariant, "variant", "", "arbitration variant: standard or scanner (default from config)")
	scanCmd.Flags().BoolVar(&scanAccept, "accept", false, "save the scanned serial number as is")
	scanCmd.Flags().StringVar(&scanEdit, "edit", "", "save this serial number instead of the scanned one")
	scanCmd.Flags().BoolVar(&scanCamera, "camera", false, "record the case as a camera capture")
	rootCmd.AddCommand(scanCmd)
}
