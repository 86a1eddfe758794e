package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobledger/internal/engine"
	"jobledger/internal/repo"
)

func contractorCmd() *cobra.Command {
	contractor := &cobra.Command{
		Use:   "contractor",
		Short: "Contractor profiles, ratings and earnings",
	}
	var opts engine.RegisterContractorOptions
	register := &cobra.Command{
		Use:   "register",
		Short: "Register the acting contractor",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := actorID()
			if err != nil {
				return err
			}
			opts.ID = id
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.RegisterContractor(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	register.Flags().StringVar(&opts.FullName, "name", "", "full name")
	register.Flags().StringVar(&opts.Service, "service", "", "service offered")
	register.Flags().StringVar(&opts.CompanyID, "company", "", "company id")
	_ = register.MarkFlagRequired("name")
	contractor.AddCommand(register)

	contractor.AddCommand(&cobra.Command{
		Use:   "show <contractor-id>",
		Short: "Show rating, earnings and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetContractorProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	return contractor
}

func companyCmd() *cobra.Command {
	company := &cobra.Command{
		Use:   "company",
		Short: "Company directory",
	}
	var opts engine.AddCompanyOptions
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			opts.ActorID = actor
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddCompany(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	add.Flags().StringVar(&opts.ID, "id", "", "company id (generated when empty)")
	add.Flags().StringVar(&opts.Name, "name", "", "company name")
	add.Flags().StringVar(&opts.ServiceType, "service-type", "", "service type")
	add.Flags().StringVar(&opts.Location, "location", "", "location")
	_ = add.MarkFlagRequired("name")
	company.AddCommand(add)

	company.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCompanies(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Service", "Location")
				for _, c := range items {
					tw.AppendRow([]any{c.ID, c.Name, deref(c.ServiceType), deref(c.Location)})
				}
				tw.Render()
				return nil
			})
		},
	})
	company.AddCommand(&cobra.Command{
		Use:   "delete <company-id>",
		Short: "Remove a company no job or contractor refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteCompany(ctx, args[0], actor); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": args[0]})
				}
				fmt.Println("deleted company", args[0])
				return nil
			})
		},
	})
	return company
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every job, claim, payment and review change, newest first.",
	}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, evt := range events {
					tw.AppendRow([]any{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + deref(evt.EntityID), evt.ActorID, deref(evt.Payload)})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind (job, claim, contractor, company)")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	log.AddCommand(tail)
	return log
}
