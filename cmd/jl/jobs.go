package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobledger/internal/domain"
	"jobledger/internal/engine"
)

func jobCmd() *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Post, claim and close job requests",
	}
	job.AddCommand(jobCreateCmd())
	job.AddCommand(jobOpenCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobShowCmd())
	job.AddCommand(jobClaimCmd())
	job.AddCommand(jobCompleteCmd())
	job.AddCommand(jobCancelCmd())
	job.AddCommand(jobEditCmd())
	return job
}

func jobCreateCmd() *cobra.Command {
	var opts engine.CreateJobOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a job request as the acting client",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			opts.ClientID = client
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.CreateJob(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "job id (generated when empty)")
	cmd.Flags().StringVar(&opts.ServiceLabel, "service", "", "requested service")
	cmd.Flags().StringVar(&opts.CompanyID, "company", "", "company id")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func jobOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "List unclaimed jobs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				jobs, err := e.ListOpenJobs(ctx)
				if err != nil {
					return err
				}
				return printJobs(jobs)
			})
		},
	}
}

func jobListCmd() *cobra.Command {
	var client, contractor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs of a client or a contractor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (client == "") == (contractor == "") {
				return fmt.Errorf("exactly one of --client or --contractor required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var jobs []domain.JobRequest
				var err error
				if client != "" {
					jobs, err = e.ListJobsForClient(ctx, client)
				} else {
					jobs, err = e.ListJobsForContractor(ctx, contractor)
				}
				if err != nil {
					return err
				}
				return printJobs(jobs)
			})
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "client id")
	cmd.Flags().StringVar(&contractor, "contractor", "", "contractor id")
	return cmd
}

func jobShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <job-id>",
		Short: "Claim an open job directly as the acting contractor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.DirectClaim(ctx, args[0], contractor)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <job-id>",
		Short: "Mark assigned work as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.CompleteJob(ctx, args[0], contractor)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job as its client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.CancelJob(ctx, args[0], client)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
}

func jobEditCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "edit <job-id>",
		Short: "Change the service label of a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.UpdateJobService(ctx, args[0], label, client)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&label, "service", "", "new service label")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func printJobs(jobs []domain.JobRequest) error {
	if viper.GetBool("json") {
		return printJSON(jobs)
	}
	tw := newTable("ID", "Service", "Status", "Approval", "Client", "Contractor", "Posted")
	for _, j := range jobs {
		tw.AppendRow([]any{j.ID, j.ServiceLabel, j.Status, j.ClientApproval, j.ClientID, deref(j.ContractorID), j.PostedAt})
	}
	tw.Render()
	return nil
}

func claimCmd() *cobra.Command {
	claim := &cobra.Command{
		Use:   "claim",
		Short: "Claim requests awaiting the client's choice",
	}
	claim.AddCommand(&cobra.Command{
		Use:   "submit <job-id>",
		Short: "Ask to be assigned to a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contractor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.SubmitClaimRequest(ctx, args[0], contractor)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	})
	claim.AddCommand(&cobra.Command{
		Use:   "accept <job-id> <contractor-id>",
		Short: "Accept one claim; the others are declined",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AcceptClaim(ctx, args[0], args[1], client)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	})
	claim.AddCommand(&cobra.Command{
		Use:   "reject <job-id> <contractor-id>",
		Short: "Decline a pending claim",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.RejectClaim(ctx, args[0], args[1], client)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	})
	claim.AddCommand(&cobra.Command{
		Use:   "list <job-id>",
		Short: "List claims on one of your jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				claims, err := e.ListClaims(ctx, args[0], client)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(claims)
				}
				tw := newTable("ID", "Contractor", "Status", "Requested")
				for _, c := range claims {
					tw.AppendRow([]any{c.ID, c.ContractorID, c.Status, c.RequestedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return claim
}
