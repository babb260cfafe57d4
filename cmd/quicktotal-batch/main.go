package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/schollz/progressbar/v3"

	"github.com/zombor/quicktotal/internal/category"
	"github.com/zombor/quicktotal/internal/client"
	"github.com/zombor/quicktotal/internal/export"
	"github.com/zombor/quicktotal/internal/geometry"
	"github.com/zombor/quicktotal/internal/imaging"
	"github.com/zombor/quicktotal/internal/ledger"
	"github.com/zombor/quicktotal/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("quicktotal-batch")
	var (
		serverURL      = fs.StringLong("server", "http://localhost:8080", "QuickTotal server URL")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		minQuality     = fs.IntLong("min-quality", receipt.DefaultMinQuality, "Skip files scoring below this quality (0-100), 0 to disable")
		cropSpec       = fs.StringLong("crop", "", "Crop every file to x1,y1,x2,y2 (native pixels, or display pixels with --display)")
		displaySpec    = fs.StringLong("display", "", "Preview size WxH the --crop selection was drawn on")
		zoom           = fs.Float64Long("zoom", 1, "Zoom level of the preview when the --crop selection was drawn (0.5-4)")
		csvPath        = fs.StringLong("csv", "", "Write the ledger as CSV to this file")
		pdfPath        = fs.StringLong("pdf", "", "Write the ledger as a PDF report to this file")
		categoriesPath = fs.StringLong("categories", "", "YAML file with category keyword groups (optional)")
		currencySymbol = fs.StringLong("currency", ledger.DefaultCurrency.Symbol, "Currency symbol used in totals")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("QUICKTOTAL_BATCH"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	paths := fs.GetArgs()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: no files given")
		os.Exit(1)
	}

	guesser := category.DefaultGuesser()
	if *categoriesPath != "" {
		var err error
		guesser, err = category.Load(*categoriesPath)
		if err != nil {
			slog.Error("Failed to load categories", "path", *categoriesPath, "error", err)
			os.Exit(1)
		}
	}

	queue := client.NewQueue()
	for _, path := range paths {
		f, err := readFile(path)
		if err != nil {
			slog.Error("Failed to read file", "path", path, "error", err)
			os.Exit(1)
		}
		queue.Add(f)
	}

	var nativeCrop *image.Rectangle
	if *cropSpec != "" {
		rect, err := parseRect(*cropSpec)
		if err != nil {
			slog.Error("Invalid crop", "crop", *cropSpec, "error", err)
			os.Exit(1)
		}
		if *displaySpec == "" {
			nativeCrop = &rect
		} else {
			display, err := parseSize(*displaySpec)
			if err != nil {
				slog.Error("Invalid display size", "display", *displaySpec, "error", err)
				os.Exit(1)
			}
			vp := geometry.NewViewport()
			vp.SetZoom(*zoom)
			if err := cropQueue(queue, rect, display, vp); err != nil {
				slog.Error("Failed to crop files", "error", err)
				os.Exit(1)
			}
		}
	}

	c := client.NewClient(*serverURL)
	c.SetBasicAuth(*authUser, *authPass)
	runner := client.NewRunner(c, *minQuality)
	runner.SetCrop(nativeCrop)

	bar := progressbar.NewOptions(queue.Len(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s...[reset]", queue.Label())),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	runner.Progress = func(done, total int, o client.Outcome) {
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	outcomes := runner.Run(context.Background(), queue.Files())

	book := ledger.NewBook(ledger.Currency{Symbol: *currencySymbol}, guesser)
	for _, doc := range client.Documents(outcomes) {
		book.AddDocument(doc)
	}
	printLedger(os.Stdout, outcomes, book)

	if *csvPath != "" {
		if err := writeExport(*csvPath, func(w io.Writer) error {
			return export.WriteCSV(w, book.Documents())
		}); err != nil {
			slog.Error("Failed to write CSV", "path", *csvPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Wrote CSV", "path", *csvPath)
	}
	if *pdfPath != "" {
		if err := writeExport(*pdfPath, func(w io.Writer) error {
			return export.WritePDF(w, export.PDFReport{Generated: time.Now(), Documents: book.Documents()})
		}); err != nil {
			slog.Error("Failed to write PDF", "path", *pdfPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Wrote PDF", "path", *pdfPath)
	}
}

// readFile loads a file and scores it locally so the runner can skip the
// server-side quality check. Files that cannot be decoded here are left for
// the server to judge.
func readFile(path string) (client.PendingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.PendingFile{}, err
	}
	f := client.PendingFile{
		Name:        filepath.Base(path),
		ContentType: imaging.NormalizeContentType(imaging.SniffContentType(data), path),
		Content:     data,
	}
	if q, err := imaging.AssessData(data, f.ContentType); err == nil {
		score := q.Score
		f.Quality = &score
	}
	return f, nil
}

// cropQueue crops every queued file to a selection drawn on a preview of
// the given display size. rect is in pointer coordinates relative to the
// preview's top-left corner at the viewport's zoom.
func cropQueue(queue *client.Queue, rect image.Rectangle, display geometry.Size, vp *geometry.Viewport) error {
	sel := geometry.Selection{
		Start: vp.ToImage(float64(rect.Min.X), float64(rect.Min.Y), 0, 0),
		End:   vp.ToImage(float64(rect.Max.X), float64(rect.Max.Y), 0, 0),
	}
	for i, f := range queue.Files() {
		img, err := imaging.Decode(f.Content, f.ContentType)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", f.Name, err)
		}
		b := img.Bounds()
		natural := geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
		cropped, err := queue.ApplyCrop(i, sel, geometry.UniformScale(natural, display))
		if err != nil {
			return err
		}
		if !cropped {
			slog.Warn("Selection too small, sending whole image", "file", f.Name)
		}
	}
	return nil
}

func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("want x1,y1,x2,y2")
	}
	v := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("coordinate %q: %w", p, err)
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}

func parseSize(s string) (geometry.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return geometry.Size{}, fmt.Errorf("want WxH")
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("width %q: %w", w, err)
	}
	height, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("height %q: %w", h, err)
	}
	return geometry.Size{Width: width, Height: height}, nil
}

func printLedger(w io.Writer, outcomes []client.Outcome, book *ledger.Book) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	totals := book.Totals()
	docs := book.Documents()
	next := 0
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "%s (%s)\tfailed: %v\n\n", o.Label(), o.File, o.Err)
			continue
		}
		doc, dt := docs[next], totals.Documents[next]
		next++
		fmt.Fprintf(tw, "%s (%d entries)\t%s\n", dt.Label, dt.Count, doc.Method)
		for i, item := range doc.Items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", item.Name, item.Category, dt.Items[i].Display)
		}
		fmt.Fprintf(tw, "  Subtotal\t\t%s\n\n", dt.Display)
	}

	fmt.Fprintf(tw, "Grand Total\t\t%s\n", totals.GrandDisplay)
	for _, c := range totals.Categories {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.Name, c.ShareDisplay(), c.Display)
	}
}

func writeExport(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
