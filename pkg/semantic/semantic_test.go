package semantic

import (
	"strings"
	"testing"
)

func validModel() *Model {
	return &Model{
		Name:       "orders",
		Table:      "orders",
		PrimaryKey: "id",
		Dimensions: []*Dimension{
			{Name: "status", Kind: KindCategorical, Expr: "{model}.status"},
			{Name: "created_at", Kind: KindTime, Expr: "{model}.created_at"},
		},
		Metrics: []*Metric{
			{Name: "revenue", Agg: AggSum, Expr: "{model}.amount"},
		},
	}
}

func TestModelValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Model)
		wantErr string
	}{
		{"valid", func(m *Model) {}, ""},
		{"no name", func(m *Model) { m.Name = "" }, "no name"},
		{"table and sql", func(m *Model) { m.SQL = "SELECT 1" }, "exactly one of table and sql"},
		{"neither table nor sql", func(m *Model) { m.Table = "" }, "exactly one of table and sql"},
		{"duplicate dimension", func(m *Model) {
			m.Dimensions = append(m.Dimensions, &Dimension{Name: "status", Kind: KindCategorical, Expr: "x"})
		}, `duplicate dimension "status"`},
		{"duplicate metric", func(m *Model) {
			m.Metrics = append(m.Metrics, &Metric{Name: "revenue", Agg: AggCount})
		}, `duplicate metric "revenue"`},
		{"granularities on categorical", func(m *Model) {
			m.Dimensions[0].Granularities = []Grain{GrainDay}
		}, "not a time dimension"},
		{"missing default time dimension", func(m *Model) {
			m.DefaultTimeDimension = "updated_at"
		}, "does not exist"},
		{"non-time default time dimension", func(m *Model) {
			m.DefaultTimeDimension = "status"
		}, "not a time dimension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMetricValidate(t *testing.T) {
	tests := []struct {
		name    string
		metric  Metric
		wantErr string
	}{
		{"aggregation", Metric{Name: "m", Agg: AggSum, Expr: "x"}, ""},
		{"bare count", Metric{Name: "m", Agg: AggCount}, ""},
		{"sum without expr", Metric{Name: "m", Agg: AggSum}, "requires an expression"},
		{"bad agg", Metric{Name: "m", Agg: "mode", Expr: "x"}, "unsupported aggregation"},
		{"no payload", Metric{Name: "m"}, "exactly one of"},
		{"two payloads", Metric{Name: "m", Agg: AggSum, Expr: "x",
			Ratio: &RatioSpec{Numerator: "a", Denominator: "b"}}, "exactly one of"},
		{"kind mismatch", Metric{Name: "m", Kind: MetricRatio, Agg: AggSum, Expr: "x"},
			"does not match"},
		{"ratio missing denominator", Metric{Name: "m",
			Ratio: &RatioSpec{Numerator: "a"}}, "numerator and denominator"},
		{"derived without metrics", Metric{Name: "m",
			Derived: &DerivedSpec{Expr: "a - b"}}, "references no metrics"},
		{"cumulative both window and grain", Metric{Name: "m",
			Cumulative: &CumulativeSpec{Metric: "a", Window: "7 day", GrainToDate: GrainMonth}},
			"exactly one of window and grain_to_date"},
		{"cumulative bad grain", Metric{Name: "m",
			Cumulative: &CumulativeSpec{Metric: "a", GrainToDate: "fortnight"}},
			"unsupported grain_to_date"},
		{"time comparison bad unit", Metric{Name: "m",
			TimeComparison: &TimeComparisonSpec{Metric: "a", Unit: "decade", Calculation: CalcDifference}},
			"unsupported comparison unit"},
		{"time comparison bad calculation", Metric{Name: "m",
			TimeComparison: &TimeComparisonSpec{Metric: "a", Unit: GrainMonth, Calculation: "delta"}},
			"unsupported calculation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.metric.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMetricKindInference(t *testing.T) {
	m := Metric{Name: "aov", Ratio: &RatioSpec{Numerator: "a", Denominator: "b"}}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if m.Kind != MetricRatio {
		t.Fatalf("Kind = %q, want %q", m.Kind, MetricRatio)
	}
}

func TestMetricReferences(t *testing.T) {
	tests := []struct {
		metric Metric
		want   []string
	}{
		{Metric{Name: "m", Kind: MetricAggregation, Agg: AggSum, Expr: "x"}, nil},
		{Metric{Name: "m", Kind: MetricRatio,
			Ratio: &RatioSpec{Numerator: "a", Denominator: "b"}}, []string{"a", "b"}},
		{Metric{Name: "m", Kind: MetricDerived,
			Derived: &DerivedSpec{Expr: "a - b", Metrics: []string{"a", "b"}}}, []string{"a", "b"}},
		{Metric{Name: "m", Kind: MetricCumulative,
			Cumulative: &CumulativeSpec{Metric: "a", Window: "7 day"}}, []string{"a"}},
	}
	for _, tt := range tests {
		got := tt.metric.References()
		if len(got) != len(tt.want) {
			t.Fatalf("References() = %v, want %v", got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("References() = %v, want %v", got, tt.want)
			}
		}
	}
}

func TestDimensionSupportsGrain(t *testing.T) {
	open := Dimension{Name: "created_at", Kind: KindTime, Expr: "x"}
	if !open.SupportsGrain(GrainHour) || !open.SupportsGrain(GrainYear) {
		t.Fatal("unrestricted time dimension should support every grain")
	}
	if open.SupportsGrain("fortnight") {
		t.Fatal("unknown grain accepted")
	}

	restricted := Dimension{Name: "snapshot", Kind: KindTime, Expr: "x",
		Granularities: []Grain{GrainDay, GrainMonth}}
	if !restricted.SupportsGrain(GrainDay) {
		t.Fatal("listed grain rejected")
	}
	if restricted.SupportsGrain(GrainWeek) {
		t.Fatal("unlisted grain accepted")
	}

	categorical := Dimension{Name: "status", Kind: KindCategorical, Expr: "x"}
	if categorical.SupportsGrain(GrainDay) {
		t.Fatal("categorical dimension supports a grain")
	}
}

func TestDimensionRender(t *testing.T) {
	d := Dimension{Name: "status", Kind: KindCategorical, Expr: "lower({model}.status)"}
	if got := d.Render("o"); got != "lower(o.status)" {
		t.Fatalf("Render() = %q", got)
	}
}

func TestModelSource(t *testing.T) {
	m := &Model{Name: "orders", Table: "public.orders", PrimaryKey: "id"}
	if got := m.Source(); got != "public.orders" {
		t.Fatalf("Source() = %q", got)
	}
	m = &Model{Name: "orders", SQL: "SELECT * FROM raw_orders;\n", PrimaryKey: "id"}
	if got := m.Source(); got != "(SELECT * FROM raw_orders)" {
		t.Fatalf("Source() = %q", got)
	}
}

func TestRelationshipValidate(t *testing.T) {
	r := Relationship{Model: "customers", Cardinality: ManyToOne, LocalKey: "customer_id", ForeignKey: "id"}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	// Name defaults to the target.
	if r.Name != "customers" {
		t.Fatalf("Name = %q, want customers", r.Name)
	}

	bad := Relationship{Name: "x", Cardinality: "sideways", LocalKey: "a", ForeignKey: "b"}
	if err := bad.Validate(); err == nil {
		t.Fatal("unsupported cardinality accepted")
	}

	junctioned := Relationship{Name: "tags", Cardinality: ManyToOne,
		LocalKey: "id", ForeignKey: "id",
		Junction: &Junction{Model: "order_tags", LocalKey: "order_id", ForeignKey: "tag_id"}}
	if err := junctioned.Validate(); err == nil {
		t.Fatal("junction on many_to_one accepted")
	}
}

func TestCardinality(t *testing.T) {
	if ManyToOne.Invert() != OneToMany || OneToMany.Invert() != ManyToOne {
		t.Fatal("many/one inversion wrong")
	}
	if OneToOne.Invert() != OneToOne || ManyToMany.Invert() != ManyToMany {
		t.Fatal("symmetric cardinalities should invert to themselves")
	}
	if ManyToOne.FansOut() || OneToOne.FansOut() {
		t.Fatal("to-one traversal reported as fanning out")
	}
	if !OneToMany.FansOut() || !ManyToMany.FansOut() {
		t.Fatal("to-many traversal not reported as fanning out")
	}
}

func TestPreAggregationValidate(t *testing.T) {
	p := PreAggregation{Name: "daily", Metrics: []string{"revenue"},
		TimeDimension: "created_at", Granularity: GrainDay}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.Kind != Rollup {
		t.Fatalf("Kind = %q, want rollup", p.Kind)
	}

	tests := []struct {
		name    string
		preagg  PreAggregation
		wantErr string
	}{
		{"no metrics", PreAggregation{Name: "p"}, "covers no metrics"},
		{"time without grain", PreAggregation{Name: "p", Metrics: []string{"m"},
			TimeDimension: "created_at"}, "set together"},
		{"grain without time", PreAggregation{Name: "p", Metrics: []string{"m"},
			Granularity: GrainDay}, "set together"},
		{"bad grain", PreAggregation{Name: "p", Metrics: []string{"m"},
			TimeDimension: "created_at", Granularity: "fortnight"}, "unsupported granularity"},
		{"bad kind", PreAggregation{Name: "p", Kind: "cube", Metrics: []string{"m"}}, "unsupported kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.preagg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPreAggregationTableName(t *testing.T) {
	p := PreAggregation{Name: "daily", Metrics: []string{"revenue"}}
	if got := p.TableName("orders", ""); got != "orders_rollup_daily" {
		t.Fatalf("TableName = %q", got)
	}
	if got := p.TableName("orders", "rollups"); got != "rollups.orders_rollup_daily" {
		t.Fatalf("TableName = %q", got)
	}
}

func TestGraphAdjacency(t *testing.T) {
	g := NewGraph()
	orders := validModel()
	orders.Relationships = []*Relationship{
		{Model: "customers", Cardinality: ManyToOne, LocalKey: "customer_id", ForeignKey: "id"},
	}
	if err := g.AddModel(orders); err != nil {
		t.Fatal(err)
	}
	if err := g.AddModel(&Model{Name: "customers", Table: "customers", PrimaryKey: "id"}); err != nil {
		t.Fatal(err)
	}
	if err := g.RebuildAdjacency(); err != nil {
		t.Fatal(err)
	}

	forward := g.Edges("orders")
	if len(forward) != 1 || forward[0].To != "customers" || forward[0].Reverse {
		t.Fatalf("orders edges = %+v", forward)
	}
	if forward[0].Cardinality() != ManyToOne {
		t.Fatalf("forward cardinality = %q", forward[0].Cardinality())
	}

	reverse := g.Edges("customers")
	if len(reverse) != 1 || reverse[0].To != "orders" || !reverse[0].Reverse {
		t.Fatalf("customers edges = %+v", reverse)
	}
	if reverse[0].Cardinality() != OneToMany {
		t.Fatalf("reverse cardinality = %q", reverse[0].Cardinality())
	}
}

func TestGraphRejectsUnknownTarget(t *testing.T) {
	g := NewGraph()
	orders := validModel()
	orders.Relationships = []*Relationship{
		{Model: "warehouses", Cardinality: ManyToOne, LocalKey: "warehouse_id", ForeignKey: "id"},
	}
	if err := g.AddModel(orders); err != nil {
		t.Fatal(err)
	}
	if err := g.RebuildAdjacency(); err == nil {
		t.Fatal("unknown relationship target accepted")
	}
}

func TestGraphDuplicates(t *testing.T) {
	g := NewGraph()
	if err := g.AddModel(validModel()); err != nil {
		t.Fatal(err)
	}
	if err := g.AddModel(validModel()); err == nil {
		t.Fatal("duplicate model accepted")
	}
	aov := func() *Metric {
		return &Metric{Name: "aov", Ratio: &RatioSpec{Numerator: "a", Denominator: "b"}}
	}
	if err := g.AddMetric(aov()); err != nil {
		t.Fatal(err)
	}
	if err := g.AddMetric(aov()); err == nil {
		t.Fatal("duplicate metric accepted")
	}
}

func TestModelAddPreAggregation(t *testing.T) {
	m := validModel()
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	p := &PreAggregation{Name: "daily", Metrics: []string{"revenue"}}
	if err := m.AddPreAggregation(p); err != nil {
		t.Fatal(err)
	}
	if err := m.AddPreAggregation(p); err == nil {
		t.Fatal("duplicate pre-aggregation accepted")
	}
}
