/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"callscript/internal/script"
	"callscript/internal/version"
)

// PDFOptions controls call sheet layout.
// Units are millimetres. Built-in Helvetica keeps the file small; text is
// translated to cp1252, so characters outside it print as '?'.
type PDFOptions struct {
	PageSize string  // "A4" (default) or "Letter"
	FontSize float64 // body size in points, default 11
	Author   string
}

const (
	margin     = 15.0
	lineFactor = 0.45 // mm per point of font size
)

// CallSheetPDF writes a printable call sheet: one section per beat with its
// say line and a branch list with jump targets.
func CallSheetPDF(ps script.ParsedScript, title string, w io.Writer, opt PDFOptions) error {
	size := opt.PageSize
	if size == "" {
		size = "A4"
	}
	fs := opt.FontSize
	if fs <= 0 {
		fs = 11
	}
	lh := fs * lineFactor
	if strings.TrimSpace(title) == "" {
		title = "Call sheet"
	}

	pdf := gofpdf.New("P", "mm", size, "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetCreator("callscript "+version.String(), true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + 5)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s  |  page %d/{nb}", tr(title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", fs+7)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, (fs+7)*lineFactor, tr(title), "", "L", false)
	sum := ps.Summary()
	pdf.SetFont("Helvetica", "", fs-2)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, lh, fmt.Sprintf("%d beats, %d branches, %d with jump targets", sum.Beats, sum.Branches, sum.Targeted), "", 1, "L", false, 0, "")
	pdf.Ln(lh)

	if !ps.IsStructured || len(ps.Beats) == 0 {
		pdf.SetFont("Helvetica", "I", fs)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, lh, "No numbered beats were found in this script.", "", "L", false)
		return output(pdf, w)
	}

	for _, b := range ps.Beats {
		beatSection(pdf, tr, b, fs, lh)
	}
	return output(pdf, w)
}

func beatSection(pdf *gofpdf.Fpdf, tr func(string) string, b script.Beat, fs, lh float64) {
	pdf.SetFillColor(235, 240, 248)
	pdf.SetTextColor(20, 40, 90)
	pdf.SetFont("Helvetica", "B", fs+2)
	head := fmt.Sprintf("Beat %d", b.Number)
	if b.Title != "" {
		head += ". " + b.Title
	}
	pdf.MultiCell(0, (fs+2)*lineFactor+1, tr(head), "", "L", true)
	pdf.Ln(1)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", fs-1)
	pdf.CellFormat(0, lh, "Say this", "", 1, "L", false, 0, "")
	if b.SayThis == script.FollowTheFlow {
		pdf.SetFont("Helvetica", "I", fs)
		pdf.SetTextColor(110, 110, 110)
	} else {
		pdf.SetFont("Helvetica", "", fs)
	}
	pdf.MultiCell(0, lh, tr(b.SayThis), "", "L", false)
	pdf.SetTextColor(0, 0, 0)

	if len(b.Branches) > 0 {
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "B", fs-1)
		pdf.CellFormat(0, lh, "If they say", "", 1, "L", false, 0, "")
		for _, br := range b.Branches {
			pdf.SetFont("Helvetica", "B", fs)
			pdf.MultiCell(0, lh, tr("- "+br.Condition), "", "L", false)
			pdf.SetFont("Helvetica", "", fs)
			line := br.Response
			if br.TargetBeat != nil {
				line += fmt.Sprintf("  -> Beat %d", *br.TargetBeat)
			}
			if strings.TrimSpace(line) != "" {
				pdf.SetX(margin + 5)
				pdf.MultiCell(0, lh, tr(line), "", "L", false)
			}
		}
	}
	pdf.Ln(lh)
}

func output(pdf *gofpdf.Fpdf, w io.Writer) error {
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
