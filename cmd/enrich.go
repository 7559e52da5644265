package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/risk-enrichment/internal/enrich"
	"github.com/sells-group/risk-enrichment/internal/model"
)

var (
	enrichID    string
	enrichType  string
	enrichName  string
	enrichEmail string
	enrichState string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one enrichment pass synchronously and print the outcome",
	Long:  "Runs a pass for --id, or creates the entity from --type and --name first. Prints the outcome as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			env.Close(closeCtx)
		}()

		base := model.Attributes{Name: enrichName, Email: enrichEmail, State: enrichState}
		id := enrichID
		if id == "" {
			typ := model.EntityType(enrichType)
			if !typ.Valid() || base.DisplayName() == "" {
				return eris.New("enrich: --id, or --type and --name, are required")
			}
			if typ == model.EntityBusiness {
				base.LegalName, base.Name = base.Name, ""
			}
			ent, err := env.Store.CreateEntity(ctx, model.Entity{Type: typ, Base: base})
			if err != nil {
				return eris.Wrap(err, "enrich: create entity")
			}
			id = ent.ID
		}

		out := env.Orch.Run(ctx, enrich.Request{EntityID: id, Base: base})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "enrich: encode outcome")
		}
		if out.State == enrich.StateAborted {
			return eris.Wrapf(out.Err, "enrich: pass aborted for %s", id)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichID, "id", "", "canonical entity id")
	enrichCmd.Flags().StringVar(&enrichType, "type", "person", "entity type when creating: person or business")
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "display or legal name when creating")
	enrichCmd.Flags().StringVar(&enrichEmail, "email", "", "known email address")
	enrichCmd.Flags().StringVar(&enrichState, "state", "", "two-letter state")
	rootCmd.AddCommand(enrichCmd)
}
