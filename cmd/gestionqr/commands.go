package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gestionqr/gestionqr/internal/attachments"
	"github.com/gestionqr/gestionqr/internal/auth"
	"github.com/gestionqr/gestionqr/internal/bootstrap"
	"github.com/gestionqr/gestionqr/internal/ingest"
	"github.com/gestionqr/gestionqr/internal/model"
	"github.com/gestionqr/gestionqr/internal/qr"
	"github.com/gestionqr/gestionqr/internal/records"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the record store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			_, closeStore, err := bootstrap.OpenRecordStore(cmd.Context(), cfg, true, log)
			if err != nil {
				return err
			}
			closeStore()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.StoreDriver)
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	var (
		tipo   string
		file   string
		layout string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a spreadsheet of hormigones or canerias",
		Example: `  gestionqr import --tipo canerias --file lineas.xlsx
  gestionqr import --tipo hormigones --layout fixed --file planilla.xlsx --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			report, err := a.importer.Import(cmd.Context(), ingest.Request{
				Tipo:     model.ParseTipo(tipo),
				Layout:   ingest.Layout(layout),
				FileName: filepath.Base(file),
				DryRun:   dryRun,
			}, f)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&tipo, "tipo", "", "Record kind: hormigones or canerias")
	cmd.Flags().StringVar(&file, "file", "", "Path to the .xlsx workbook")
	cmd.Flags().StringVar(&layout, "layout", string(ingest.LayoutHeaders), "Sheet layout: headers or fixed (hormigones only)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the counts without writing")
	_ = cmd.MarkFlagRequired("tipo")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printReport(w io.Writer, r ingest.Report) {
	verb := "imported"
	if r.DryRun {
		verb = "would import"
	}
	fmt.Fprintf(w, "%s %s: %d nuevos, %d actualizados (%d filas leidas, %d validas, %d unicas)\n",
		verb, r.Tipo, r.Result.Inserted, r.Result.Updated, r.RawRows, r.Normalized, r.Aggregated)
}

func newShowCmd() *cobra.Command {
	var tipo string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.records.GetByID(cmd.Context(), args[0], model.ParseTipo(tipo))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().StringVar(&tipo, "tipo", "", "Record kind; probes both tables when empty")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		titulo, nroInterno string
		nroLinea, nroISO   string
		limit              int
	)
	cmd := &cobra.Command{
		Use:       "search hormigones|canerias",
		Short:     "List records matching partial filters",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.TipoHormigones), string(model.TipoCanerias)},
		RunE: func(cmd *cobra.Command, args []string) error {
			tipo := model.ParseTipo(args[0])
			if !tipo.Valid() {
				return records.ErrInvalidTipo
			}
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()
			if tipo == model.TipoHormigones {
				items, err := a.records.SearchHormigones(cmd.Context(), records.HormigonQuery{Titulo: titulo, NroInterno: nroInterno, Limit: limit})
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tNRO INTERNO\tTITULO\tSATELITE\tPESO KG")
				for _, h := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.IDHormigon, h.NroInterno, str(h.Titulo), str(h.Satelite), num(h.PesoTotalBaseKg))
				}
				return nil
			}
			items, err := a.records.SearchCanerias(cmd.Context(), records.CaneriaQuery{NroLinea: nroLinea, NroISO: nroISO, Limit: limit})
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ID\tNRO ISO\tLINEA\tSATELITE\tCANTIDAD")
			for _, c := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", c.IDCaneria, c.NroISO, str(c.NroLinea), c.Satelite, c.Cantidad)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&titulo, "titulo", "", "Substring of titulo (hormigones)")
	cmd.Flags().StringVar(&nroInterno, "nro-interno", "", "Substring of nro_interno (hormigones)")
	cmd.Flags().StringVar(&nroLinea, "nro-linea", "", "Substring of nro_linea (canerias)")
	cmd.Flags().StringVar(&nroISO, "nro-iso", "", "Substring of nro_iso (canerias)")
	cmd.Flags().IntVar(&limit, "limit", records.DefaultLimit, "Maximum rows")
	return cmd
}

func newQRCmd() *cobra.Command {
	var (
		save    bool
		pngPath string
		origin  string
		size    int
	)
	cmd := &cobra.Command{
		Use:   "qr <tipo> <id>",
		Short: "Print the QR payload of a record, optionally saving it or writing a PNG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tipo := model.ParseTipo(args[0])
			if !tipo.Valid() {
				return records.ErrInvalidTipo
			}
			id := args[1]
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.records.GetByID(cmd.Context(), id, tipo); err != nil {
				return err
			}
			payload := a.qrBuilder().Payload(id, tipo, origin)
			if save {
				if err := a.records.SaveQRPayload(cmd.Context(), tipo, id, payload); err != nil {
					return err
				}
			}
			if pngPath != "" {
				png, err := qr.RenderPNG(payload, size)
				if err != nil {
					return err
				}
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return fmt.Errorf("write png: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Store the payload in qr_code_url")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write the QR image to this file")
	cmd.Flags().StringVar(&origin, "origin", "", "Origin used when GESTIONQR_PUBLIC_APP_URL is unset")
	cmd.Flags().IntVar(&size, "size", qr.DefaultSize, "PNG edge in pixels")
	return cmd
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <tipo> <id> <file>",
		Short: "Upload a documentation file and link it to a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer f.Close()
			up, err := a.attachments().Upload(cmd.Context(), attachments.UploadRequest{
				Tipo:     model.ParseTipo(args[0]),
				ID:       args[1],
				FileName: filepath.Base(args[2]),
				Body:     f,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), up)
		},
	}
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <tipo> <id>",
		Short: "Print a download link for a record's attached file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.records.GetByID(cmd.Context(), args[1], model.ParseTipo(args[0]))
			if err != nil {
				return err
			}
			link, err := a.attachments().Link(cmd.Context(), rec.ArchivoURL())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Print the number of records per kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			counts, err := a.records.Counts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hormigones: %d\ncanerias: %d\n", counts.Hormigones, counts.Canerias)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		subject, email, role string
		ttl                  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWT(); err != nil {
				return err
			}
			var roleID int
			switch strings.ToLower(role) {
			case "calidad":
				roleID = auth.RoleCalidad
			case "obrero":
				roleID = auth.RoleObrero
			default:
				return fmt.Errorf("unknown role %q (calidad or obrero)", role)
			}
			tok, err := auth.NewVerifier(cfg.JWTSecret).Issue(subject, email, roleID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "local-dev", "Token subject")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&role, "role", "obrero", "Role: calidad or obrero")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func str(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}
