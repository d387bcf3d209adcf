package reader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tickets/internal/table"
)

// ReadPair reads the barcodes and orders files concurrently. The first
// failure cancels the other read and is returned.
func ReadPair(ctx context.Context, r Reader, barcodesPath, ordersPath string) (barcodes, orders *table.Table, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := r.Read(gctx, barcodesPath)
		if err != nil {
			return err
		}
		barcodes = t
		return nil
	})

	g.Go(func() error {
		t, err := r.Read(gctx, ordersPath)
		if err != nil {
			return err
		}
		orders = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return barcodes, orders, nil
}
