package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

func WriteLedgerCSV(path string, records []StepRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeLedgerCSV(f, records)
}

func EncodeLedgerCSV(out io.Writer, records []StepRecord) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"index",
		"timestamp",
		"action_type",
		"market_id",
		"quantity",
		"limit_price",
		"execution_price",
		"success",
		"reject_reason",
		"portfolio_value",
		"belief",
		"news_count",
		"reasoning",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Index),
			fmtTime(r.Timestamp),
			string(r.Action.Type),
			r.Action.MarketID,
			strconv.Itoa(r.Action.Quantity),
			fmtOptFloat(r.Action.Price),
			fmtOptFloat(r.ExecutionPrice),
			strconv.FormatBool(r.Success),
			r.RejectReason,
			fmtFloat(r.PortfolioValue),
			fmtFloat(r.Action.Belief),
			strconv.Itoa(len(r.Observation.News)),
			r.Action.Reasoning,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func fmtOptFloat(x *float64) string {
	if x == nil {
		return ""
	}
	return fmtFloat(*x)
}
