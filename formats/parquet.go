package formats

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/tobilg/caddyserver-soqlstudio-module/resultset"
)

// parquetBatchSize is the number of rows per record batch fed to the writer.
const parquetBatchSize = 10000

// WriteParquet writes rows as a Snappy-compressed Parquet file. A set with
// no columns cannot be written and returns ErrNoColumns.
func WriteParquet(w io.Writer, rows []resultset.Row) error {
	schema := inferSchema(rows)
	if len(schema.Fields()) == 0 {
		return ErrNoColumns
	}
	pool := memory.NewGoAllocator()

	var recordBatches []arrow.Record
	release := func() {
		for _, r := range recordBatches {
			r.Release()
		}
	}

	for start := 0; start < len(rows); start += parquetBatchSize {
		end := min(start+parquetBatchSize, len(rows))
		record, err := buildRecordBatch(rows[start:end], schema, pool)
		if err != nil {
			release()
			return fmt.Errorf("failed to build record batch: %w", err)
		}
		recordBatches = append(recordBatches, record)
	}

	table := array.NewTableFromRecords(schema, recordBatches)
	defer table.Release()
	release()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)

	arrowWriterProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	if err := pqarrow.WriteTable(table, w, table.NumRows(), writerProps, arrowWriterProps); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}

	return nil
}
