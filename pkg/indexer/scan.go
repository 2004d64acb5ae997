package indexer

import (
	"context"
	"iter"
)

// MetadataSource resolves transaction metadata.
type MetadataSource interface {
	TransactionMetadata(ctx context.Context, txHash string) (Metadata, bool, error)
}

// Lookup is one step of a history scan.
type Lookup struct {
	Summary  TransactionSummary
	Metadata Metadata
	Present  bool
}

// Scan fetches metadata for txs in order, one request per step, stopping as
// soon as the consumer stops pulling. Per-transaction errors are yielded
// alongside the summary; a cancelled ctx is yielded once and ends the scan.
func Scan(ctx context.Context, src MetadataSource, txs []TransactionSummary) iter.Seq2[Lookup, error] {
	return func(yield func(Lookup, error) bool) {
		for _, tx := range txs {
			if err := ctx.Err(); err != nil {
				yield(Lookup{Summary: tx}, err)
				return
			}
			md, ok, err := src.TransactionMetadata(ctx, tx.TxHash)
			if !yield(Lookup{Summary: tx, Metadata: md, Present: ok}, err) {
				return
			}
		}
	}
}
