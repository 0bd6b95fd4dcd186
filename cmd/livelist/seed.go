package main

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/livefir/livelist/internal/fake"
	"github.com/livefir/livelist/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert fake people",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetUint64("seed")
		if count <= 0 {
			return errors.Newf("--count must be positive, got %d", count)
		}
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}

		cfg, log, err := setup("")
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.InsertMany(ctx, fakePeople(fake.New(seed), count)); err != nil {
			return err
		}
		total, err := st.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d people, %d in total\n", count, total)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("count", 50, "Number of people to insert")
	seedCmd.Flags().Uint64("seed", 0, "Random seed (0 picks one)")
}

func fakePeople(gen *fake.Generator, n int) []store.Person {
	people := make([]store.Person, 0, n)
	for _, p := range gen.People(n) {
		people = append(people, store.Person{Name: p.Name, City: p.City, Email: p.Email})
	}
	return people
}
