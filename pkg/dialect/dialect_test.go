package dialect

import "testing"

func testDialect() *Dialect {
	return &Dialect{
		Name: "test",
		Identifiers: IdentifierConfig{
			Quote:         `"`,
			QuoteEnd:      `"`,
			Escape:        `""`,
			Normalization: NormLowercase,
		},
	}
}

func TestQuoteIdentifier(t *testing.T) {
	d := testDialect()
	if got := d.QuoteIdentifier("orders.revenue"); got != `"orders.revenue"` {
		t.Fatalf("QuoteIdentifier = %q", got)
	}
	if got := d.QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Fatalf("QuoteIdentifier = %q", got)
	}

	backtick := &Dialect{Name: "bt", Identifiers: IdentifierConfig{
		Quote: "`", QuoteEnd: "`", Escape: "\\`",
	}}
	if got := backtick.QuoteIdentifier("col"); got != "`col`" {
		t.Fatalf("QuoteIdentifier = %q", got)
	}
}

func TestNormalizeName(t *testing.T) {
	d := testDialect()
	if got := d.NormalizeName("Orders"); got != "orders" {
		t.Fatalf("NormalizeName = %q", got)
	}
	d.Identifiers.Normalization = NormUppercase
	if got := d.NormalizeName("Orders"); got != "ORDERS" {
		t.Fatalf("NormalizeName = %q", got)
	}
}

func TestDateTrunc(t *testing.T) {
	d := testDialect()
	if got := d.DateTrunc("month", "o.created_at"); got != "date_trunc('month', o.created_at)" {
		t.Fatalf("DateTrunc = %q", got)
	}

	d.Trunc = TruncUnitArg
	if got := d.DateTrunc("month", "o.created_at"); got != "timestamp_trunc(o.created_at, MONTH)" {
		t.Fatalf("DateTrunc = %q", got)
	}

	d.TruncFunc = "datetime_trunc"
	if got := d.DateTrunc("day", "o.created_at"); got != "datetime_trunc(o.created_at, DAY)" {
		t.Fatalf("DateTrunc = %q", got)
	}
}

func TestMedian(t *testing.T) {
	d := testDialect()
	if got := d.Median("x"); got != "MEDIAN(x)" {
		t.Fatalf("Median = %q", got)
	}
	d.MedianExpr = func(expr string) string { return "APPROX_QUANTILES(" + expr + ", 2)[SAFE_OFFSET(1)]" }
	if got := d.Median("x"); got != "APPROX_QUANTILES(x, 2)[SAFE_OFFSET(1)]" {
		t.Fatalf("Median = %q", got)
	}
}

func TestRegistry(t *testing.T) {
	d := testDialect()
	Register(d)

	got, ok := Get("TEST")
	if !ok || got != d {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	if _, err := Require("test"); err != nil {
		t.Fatal(err)
	}
	if _, err := Require(""); err != ErrDialectRequired {
		t.Fatalf("Require(\"\") = %v", err)
	}
	if _, err := Require("nonexistent"); err == nil {
		t.Fatal("unknown dialect accepted")
	}

	found := false
	for _, name := range List() {
		if name == "test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("List() = %v, missing test", List())
	}
}
