package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supply"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo messages, orders and supply requests",
	Long: `Insert a small demo data set into the configured SQL store. Timestamps
are relative to now. Re-running against a seeded store does nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Store.Driver == config.DriverMemory {
			return fmt.Errorf("seed requires store.driver sqlite or postgres")
		}
		st, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()
		return seedDemo(cmd.Context(), st, time.Now().UTC(), cmd.OutOrStdout())
	},
}

func seedDemo(ctx context.Context, st store.Store, now time.Time, out io.Writer) error {
	ago := func(d time.Duration) time.Time { return now.Add(-d) }

	if _, err := st.FindMessageByDeliveryID(ctx, "SM0001"); err == nil {
		fmt.Fprintln(out, "demo data already present")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	messages := []supply.Message{
		{
			ID:               "11111111-1111-1111-1111-111111111111",
			WorkerID:         "worker-01",
			SpanishRaw:       "Necesitamos más concreto en la zona norte.",
			EnglishRaw:       "We need more concrete in the north area.",
			EnglishFormatted: "Requesting additional concrete for the north zone.",
			Category:         supply.CategoryMaterialNeed,
			Urgency:          supply.UrgencyHigh,
			DeliveryID:       supply.Ptr("SM0001"),
			CreatedAt:        ago(2 * time.Hour),
		},
		{
			ID:               "22222222-2222-2222-2222-222222222222",
			WorkerID:         "worker-02",
			SpanishRaw:       "La entrega llegó dañada.",
			EnglishRaw:       "The delivery arrived damaged.",
			EnglishFormatted: "Report of damaged delivery.",
			Category:         supply.CategoryClarification,
			Urgency:          supply.UrgencyHigh,
			DeliveryID:       supply.Ptr("SM0002"),
			CreatedAt:        ago(90 * time.Minute),
		},
		{
			ID:               "33333333-3333-3333-3333-333333333333",
			WorkerID:         "worker-03",
			SpanishRaw:       "¿Podemos recibir más guantes?",
			EnglishRaw:       "Can we receive more gloves?",
			EnglishFormatted: "Request for additional gloves.",
			Category:         supply.CategoryMaterialNeed,
			Urgency:          supply.UrgencyNormal,
			DeliveryID:       supply.Ptr("SM0003"),
			CreatedAt:        ago(30 * time.Minute),
		},
	}
	for i := range messages {
		if err := st.CreateMessage(ctx, &messages[i]); err != nil {
			return fmt.Errorf("seed message %s: %w", messages[i].ID, err)
		}
	}
	fmt.Fprintf(out, "Messages seeded: %d\n", len(messages))

	replies := []supply.SupervisorReply{
		{
			ID:            "aaaaaaa1-aaaa-aaaa-aaaa-aaaaaaaaaaa1",
			MessageID:     messages[0].ID,
			EnglishRaw:    "Approved. Ordering one more truck.",
			SpanishTrans:  "Aprobado. Pediremos otro camión.",
			ActionSummary: "Order extra concrete truck.",
			CreatedAt:     ago(100 * time.Minute),
		},
		{
			ID:            "aaaaaaa2-aaaa-aaaa-aaaa-aaaaaaaaaaa2",
			MessageID:     messages[1].ID,
			EnglishRaw:    "Take photos and send to supplier.",
			SpanishTrans:  "Tomen fotos y envíenlas al proveedor.",
			ActionSummary: "Collect evidence and notify supplier.",
			CreatedAt:     ago(70 * time.Minute),
		},
	}
	for i := range replies {
		if err := st.CreateSupervisorReply(ctx, &replies[i]); err != nil {
			return fmt.Errorf("seed supervisor reply %s: %w", replies[i].ID, err)
		}
	}
	fmt.Fprintf(out, "Supervisor replies seeded: %d\n", len(replies))

	orders := []supply.SupplyOrder{
		{
			ID:             "bbbbbbb1-bbbb-bbbb-bbbb-bbbbbbbbbbb1",
			CrewID:         "crew-A",
			Item:           "Concrete 4000 PSI",
			NormalizedItem: "concrete",
			Quantity:       supply.Ptr(10.0),
			Unit:           supply.Ptr("yards"),
			Supplier:       supply.Ptr("Best Concrete Co"),
			Cost:           supply.Ptr(2500.0),
			OrderedAt:      ago(95 * time.Minute),
			Notes:          supply.Ptr("Rush order"),
		},
		{
			ID:             "bbbbbbb2-bbbb-bbbb-bbbb-bbbbbbbbbbb2",
			CrewID:         "crew-B",
			Item:           "Work gloves",
			NormalizedItem: "gloves",
			Quantity:       supply.Ptr(50.0),
			Unit:           supply.Ptr("pairs"),
			Supplier:       supply.Ptr("Safety Supply"),
			Cost:           supply.Ptr(320.0),
			OrderedAt:      ago(20 * 24 * time.Hour),
			DeliveredAt:    supply.Ptr(ago(19 * 24 * time.Hour)),
		},
	}
	for i := range orders {
		if err := st.CreateSupplyOrder(ctx, &orders[i]); err != nil {
			return fmt.Errorf("seed supply order %s: %w", orders[i].ID, err)
		}
	}
	fmt.Fprintf(out, "Supply orders seeded: %d\n", len(orders))

	requests := []supply.SupplyRequest{
		{
			ID:                  "ccccccc1-cccc-cccc-cccc-ccccccccccc1",
			OriginalMessageID:   supply.Ptr(messages[0].ID),
			CrewID:              "crew-A",
			WorkerID:            "worker-01",
			Item:                "Concrete 4000 PSI",
			NormalizedItem:      "concrete",
			Quantity:            supply.Ptr(10.0),
			Unit:                supply.Ptr("yards"),
			Urgency:             supply.UrgencyHigh,
			Status:              supply.StatusApproved,
			SuggestedQuantity:   supply.Ptr(12.0),
			SuggestedSupplier:   supply.Ptr("Best Concrete Co"),
			EstimatedTotal:      supply.Ptr(3000.0),
			ResponseTimeMinutes: supply.Ptr(15),
			ApprovedBy:          supply.Ptr("supervisor-1"),
			ApprovedAt:          supply.Ptr(ago(90 * time.Minute)),
			CreatedAt:           ago(110 * time.Minute),
		},
		{
			ID:                "ccccccc2-cccc-cccc-cccc-ccccccccccc2",
			OriginalMessageID: supply.Ptr(messages[2].ID),
			CrewID:            "crew-B",
			WorkerID:          "worker-03",
			Item:              "Work gloves",
			NormalizedItem:    "gloves",
			Unit:              supply.Ptr("pairs"),
			Urgency:           supply.UrgencyNormal,
			Status:            supply.StatusPending,
			SuggestedQuantity: supply.Ptr(40.0),
			SuggestedSupplier: supply.Ptr("Safety Supply"),
			EstimatedTotal:    supply.Ptr(250.0),
			CreatedAt:         ago(25 * time.Minute),
		},
		{
			ID:                  "ccccccc3-cccc-cccc-cccc-ccccccccccc3",
			CrewID:              "crew-C",
			WorkerID:            "worker-09",
			Item:                "Lumber 2x4",
			NormalizedItem:      "lumber_2x4",
			Quantity:            supply.Ptr(100.0),
			Unit:                supply.Ptr("pieces"),
			Urgency:             supply.UrgencyNormal,
			Status:              supply.StatusRejected,
			SuggestedQuantity:   supply.Ptr(80.0),
			SuggestedSupplier:   supply.Ptr("Timber Yard"),
			EstimatedTotal:      supply.Ptr(900.0),
			ResponseTimeMinutes: supply.Ptr(60),
			RejectionReason:     supply.Ptr("Already over budget."),
			CreatedAt:           ago(24 * time.Hour),
		},
	}
	for i := range requests {
		if err := st.CreateSupplyRequest(ctx, &requests[i]); err != nil {
			return fmt.Errorf("seed supply request %s: %w", requests[i].ID, err)
		}
	}
	fmt.Fprintf(out, "Supply requests seeded: %d\n", len(requests))
	return nil
}
