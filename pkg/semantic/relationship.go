package semantic

import "fmt"

// Cardinality describes how rows of the owning model relate to rows of the
// target model. The cardinality decides which side owns the foreign key and
// which side can fan out under a join.
type Cardinality string

// Supported cardinalities.
const (
	ManyToOne  Cardinality = "many_to_one"
	OneToMany  Cardinality = "one_to_many"
	OneToOne   Cardinality = "one_to_one"
	ManyToMany Cardinality = "many_to_many"
)

// Invert returns the cardinality seen when traversing the relationship from
// the target back to the owner.
func (c Cardinality) Invert() Cardinality {
	switch c {
	case ManyToOne:
		return OneToMany
	case OneToMany:
		return ManyToOne
	default:
		return c
	}
}

// FansOut reports whether traversing an edge with this cardinality can
// multiply the rows already joined.
func (c Cardinality) FansOut() bool {
	return c == OneToMany || c == ManyToMany
}

// Junction names the join-through model of a many-to-many relationship and
// the junction columns pointing at each side.
type Junction struct {
	Model string `koanf:"model"`

	// LocalKey is the junction column referencing the owning model;
	// ForeignKey references the target model.
	LocalKey   string `koanf:"local_key"`
	ForeignKey string `koanf:"foreign_key"`
}

// Relationship is a declared join path from the owning model to a target
// model.
type Relationship struct {
	// Name is the relationship's identity within the owning model. It
	// defaults to the target model name; set Model explicitly when the
	// same target is joined under multiple aliases.
	Name  string `koanf:"name"`
	Model string `koanf:"model"`

	Cardinality Cardinality `koanf:"cardinality"`

	// LocalKey is the join column on the owning model, ForeignKey the
	// column on the target model. For many_to_many these are the columns
	// each side matches against its junction column.
	LocalKey   string `koanf:"local_key"`
	ForeignKey string `koanf:"foreign_key"`

	Junction *Junction `koanf:"junction"`
}

// Target returns the target model name.
func (r *Relationship) Target() string {
	if r.Model != "" {
		return r.Model
	}
	return r.Name
}

// Validate checks relationship invariants.
func (r *Relationship) Validate() error {
	if r.Name == "" && r.Model == "" {
		return fmt.Errorf("relationship has neither name nor model")
	}
	if r.Name == "" {
		r.Name = r.Model
	}
	switch r.Cardinality {
	case ManyToOne, OneToMany, OneToOne, ManyToMany:
	default:
		return fmt.Errorf("relationship %q: unsupported cardinality %q", r.Name, r.Cardinality)
	}
	if r.LocalKey == "" || r.ForeignKey == "" {
		return fmt.Errorf("relationship %q: local_key and foreign_key are required", r.Name)
	}
	if r.Junction != nil {
		if r.Cardinality != ManyToMany {
			return fmt.Errorf("relationship %q: junction is only valid for many_to_many", r.Name)
		}
		if r.Junction.Model == "" || r.Junction.LocalKey == "" || r.Junction.ForeignKey == "" {
			return fmt.Errorf("relationship %q: junction requires model, local_key and foreign_key", r.Name)
		}
	}
	return nil
}
