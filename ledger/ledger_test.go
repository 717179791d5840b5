package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<html><body>
<table id="Other"><tr><td>ignored</td></tr></table>
<table id="GenTableBy">
<tr><th>Date</th><th>Voucher</th><th>Bank Code</th><th>Cheque</th><th>Description</th><th>Debit</th><th>Credit</th><th>Balance</th></tr>
<tr><td></td><td></td><td></td><td></td><td>*OPENING BALANCE*</td><td></td><td></td><td>0.00</td></tr>
<tr><td>03/04/2017</td><td>RV1</td><td>HDFC</td><td>1</td><td>Direct Credit [NEFT]</td><td></td><td>10,000.00</td><td>-10000.00</td></tr>
<tr><td>05/04/2017</td><td>JV2</td><td></td><td></td><td>To Bill 123</td><td>4,500.50</td><td></td><td>-5499.50</td></tr>
<tr><td>06/04/2017</td><td>JV3</td><td></td><td></td><td>Amc Charges ~</td><td>300</td><td></td><td>-5199.50</td></tr>
<tr><td>07/04/2017</td><td>JV4</td><td></td><td></td><td>Amc Charges Reversed</td><td></td><td>100</td><td>-5299.50</td></tr>
<tr><td>08/04/2017</td><td>PV5</td><td>HDFC</td><td>2</td><td>Bank Payment</td><td>2000</td><td></td><td>-3299.50</td></tr>
</table></body></html>`

func TestParseHTML(t *testing.T) {
	rq := require.New(t)

	entries, err := ParseHTML(strings.NewReader(sampleHTML), "Ledger.htm")
	rq.Nil(err)
	rq.Len(entries, 5)
	rq.Equal(Transfer, entries[0].Category)
	rq.Equal("2017-04-03", entries[0].Date.String())
	rq.Equal("Direct Credit NEFT", entries[0].Description)
	rq.True(entries[0].Amount().Equal(decimal.NewFromInt(-10000)))
	rq.Equal(Buy, entries[1].Category)
	rq.True(entries[1].Debit.Equal(decimal.RequireFromString("4500.50")))
	rq.Equal(Maintenance, entries[2].Category)
	rq.Equal(ChargesReversed, entries[3].Category)
	rq.Equal(Withdrawal, entries[4].Category)
	rq.Equal("Ledger.htm", entries[4].Source)
}

func TestParseHTMLErrors(t *testing.T) {
	rq := require.New(t)

	_, err := ParseHTML(strings.NewReader("<html><table id=\"x\"></table></html>"), "L.htm")
	rq.ErrorContains(err, "No ledger table found in L.htm")

	bad := `<table id="GenTableBy">
<tr><td>01/01/2017</td><td></td><td></td><td></td><td>Mystery fee</td><td>5</td><td></td><td>5</td></tr>
</table>`
	_, err = ParseHTML(strings.NewReader(bad), "L.htm")
	rq.ErrorIs(err, ErrUnknownCategory)
	rq.ErrorContains(err, "L.htm at row 1")
}

func TestParseCSVAndTotals(t *testing.T) {
	rq := require.New(t)

	csvText := `Date,Description,Debit,Credit,Balance
2017-04-01,Opening Balance,,,0
2017-04-03,Direct Credit,,"10,000",
2017-04-10,Delayed payment charges,25,,
2017-04-11,Service Tax on charges,4.5,,
2017-04-12,Charges Refunded,,10,
2017-04-15,Bank Payment,1500,,
2017-04-20,By Bill 55,,800,
`
	entries, err := ParseCSV(strings.NewReader(csvText), "ledger.csv")
	rq.Nil(err)
	rq.Len(entries, 6)

	totals := Total(entries)
	rq.True(totals.Get(Late).Equal(decimal.NewFromInt(25)))
	rq.True(totals.Get(Sell).Equal(decimal.NewFromInt(-800)))
	rq.True(totals.Get(Dividend).IsZero())

	pt := totals.PortfolioTotals()
	rq.True(pt.FundsTransferred.Equal(decimal.NewFromInt(8500)))
	rq.True(pt.Late.Equal(decimal.NewFromInt(25)))
	rq.True(pt.ServiceTax.Equal(decimal.RequireFromString("4.5")))
	rq.True(pt.Reversed.Equal(decimal.NewFromInt(10)))
	rq.True(pt.Maintenance.IsZero())
}

func TestParseCSVErrors(t *testing.T) {
	rq := require.New(t)

	_, err := ParseCSV(strings.NewReader("Date,Description\n"), "l.csv")
	rq.ErrorContains(err, "missing ledger columns")

	_, err = ParseCSV(strings.NewReader("date,description,debit,credit\n2017-01-01,Lunch,5,\n"), "l.csv")
	rq.ErrorIs(err, ErrUnknownCategory)
	rq.ErrorContains(err, "l.csv at line 2")

	_, err = ParseCSV(strings.NewReader("date,description,debit,credit\nyesterday,Amc,5,\n"), "l.csv")
	rq.ErrorContains(err, "invalid date")
}

func TestParseFile(t *testing.T) {
	rq := require.New(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "Ledger_2017.htm")
	rq.Nil(os.WriteFile(path, []byte(sampleHTML), 0644))
	entries, err := ParseFile(path)
	rq.Nil(err)
	rq.Len(entries, 5)

	path = filepath.Join(dir, "ledger.txt")
	rq.Nil(os.WriteFile(path, []byte(""), 0644))
	_, err = ParseFile(path)
	rq.ErrorContains(err, "Unsupported")
}

func TestCategoryJSON(t *testing.T) {
	rq := require.New(t)

	b, err := json.Marshal(ChargesReversed)
	rq.Nil(err)
	rq.Equal(`"Charges Reversed"`, string(b))

	var c Category
	rq.Nil(json.Unmarshal([]byte(`"late charges"`), &c))
	rq.Equal(Late, c)
	rq.ErrorIs(json.Unmarshal([]byte(`"gifts"`), &c), ErrUnknownCategory)
}
