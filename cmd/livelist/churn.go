package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livefir/livelist/internal/fake"
	"github.com/livefir/livelist/internal/logger"
	"github.com/livefir/livelist/internal/store"
)

var churnCmd = &cobra.Command{
	Use:   "churn",
	Short: "Insert, delete and rename people at an interval",
	Long: `churn keeps changing the people table so a running serve or watch has
something to follow. Each tick inserts, deletes or renames one person.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, _ := cmd.Flags().GetUint64("seed")
		steps, _ := cmd.Flags().GetInt("steps")
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}

		cfg, log, err := setup("")
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		log = logger.Component(log, "churn")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		gen := fake.New(seed)
		ticker := time.NewTicker(cfg.Churn.Interval)
		defer ticker.Stop()

		for n := 0; steps <= 0 || n < steps; n++ {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			action, err := churnStep(ctx, st, gen)
			if err != nil {
				log.Warn("churn step failed", zap.Error(err))
				continue
			}
			log.Info("churn", zap.String(logger.FieldOperation, action))
		}
		return nil
	},
}

func init() {
	churnCmd.Flags().Uint64("seed", 0, "Random seed (0 picks one)")
	churnCmd.Flags().Int("steps", 0, "Stop after this many changes (0 runs until interrupted)")
	churnCmd.Flags().Duration("interval", 0, "Time between changes (overrides config)")
	churnCmd.PreRunE = bindOnRun(map[string]string{"interval": "churn.interval"})
}

// churnStep makes one random change and describes it. An empty table always
// gets an insert.
func churnStep(ctx context.Context, st *store.Store, gen *fake.Generator) (string, error) {
	id, ok, err := st.RandomID(ctx)
	if err != nil {
		return "", err
	}

	roll := gen.Intn(100)
	switch {
	case !ok || roll < 50:
		p := gen.Person()
		id, err := st.Insert(ctx, p.Name, p.City, p.Email)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("insert %d %s", id, p.Name), nil
	case roll < 75:
		if err := st.Delete(ctx, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("delete %d", id), nil
	default:
		name := gen.Person().Name
		if err := st.Rename(ctx, id, name); err != nil {
			return "", err
		}
		return fmt.Sprintf("rename %d %s", id, name), nil
	}
}
