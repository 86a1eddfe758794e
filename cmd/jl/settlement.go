package main

import (
	"context"

	"github.com/spf13/cobra"

	"jobledger/internal/domain"
	"jobledger/internal/engine"
)

func approvalCmd() *cobra.Command {
	approval := &cobra.Command{
		Use:   "approval",
		Short: "Client sign-off on delivered work",
	}
	var decision string
	set := &cobra.Command{
		Use:   "set <job-id>",
		Short: "Approve or deny the work on a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.SetClientApproval(ctx, args[0], domain.Approval(decision), client)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	set.Flags().StringVar(&decision, "decision", "", "Approved or Denied")
	_ = set.MarkFlagRequired("decision")
	approval.AddCommand(set)
	return approval
}

func paymentCmd() *cobra.Command {
	payment := &cobra.Command{
		Use:   "payment",
		Short: "Pay the assigned contractor",
	}
	var opts engine.RecordPaymentOptions
	record := &cobra.Command{
		Use:   "record <job-id>",
		Short: "Record the payment for an approved job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			opts.JobID, opts.ClientID = args[0], client
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.RecordPayment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	record.Flags().Float64Var(&opts.Amount, "amount", 0, "amount paid")
	record.Flags().StringVar(&opts.Method, "method", "", "payment method")
	_ = record.MarkFlagRequired("amount")
	_ = record.MarkFlagRequired("method")
	payment.AddCommand(record)
	return payment
}

func reviewCmd() *cobra.Command {
	review := &cobra.Command{
		Use:   "review",
		Short: "Rate completed work",
	}
	var opts engine.RecordReviewOptions
	var comment string
	record := &cobra.Command{
		Use:   "record <job-id>",
		Short: "Review the contractor of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := actorID()
			if err != nil {
				return err
			}
			opts.JobID, opts.ClientID = args[0], client
			if cmd.Flags().Changed("comment") {
				opts.Comment = &comment
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rv, err := e.RecordReview(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rv)
			})
		},
	}
	record.Flags().IntVar(&opts.Rating, "rating", 0, "rating from 1 to 5")
	record.Flags().StringVar(&comment, "comment", "", "review comment")
	_ = record.MarkFlagRequired("rating")
	review.AddCommand(record)
	return review
}

func completionCmd() *cobra.Command {
	completion := &cobra.Command{
		Use:   "completion",
		Short: "Close a job with rating and payment in one step",
	}
	var opts engine.RecordCompletionOptions
	var comment string
	record := &cobra.Command{
		Use:   "record <job-id>",
		Short: "Complete an in-progress job, recording its payment and review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			opts.JobID, opts.ActorID = args[0], actor
			if cmd.Flags().Changed("comment") {
				opts.Comment = &comment
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RecordCompletion(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	record.Flags().IntVar(&opts.Rating, "rating", 0, "rating from 1 to 5")
	record.Flags().Float64Var(&opts.Amount, "amount", 0, "amount credited to the contractor")
	record.Flags().StringVar(&opts.Method, "method", "", "payment method (defaults to payments.completion_method)")
	record.Flags().StringVar(&comment, "comment", "", "review comment")
	_ = record.MarkFlagRequired("rating")
	completion.AddCommand(record)
	return completion
}
