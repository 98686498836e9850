// Package diff computes field-level change logs between two versions of an order.
package diff

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	odiff "github.com/r3labs/diff/v3"

	"travelbook/order"
)

// GetCustomDiffer returns a differ that flattens the embedded Draft and
// Derived structs and never reports partner UI keys.
func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(
		odiff.CustomValueDiffers(&UUIDComparer{}),
		odiff.FlattenEmbeddedStructs(),
		odiff.SliceOrdering(true),
	)
	if err != nil {
		panic(err)
	}
	return ret
}

// UUIDComparer treats every pair of UUIDs as equal. UUIDs in an order are
// editing keys, not data.
type UUIDComparer struct{}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// Match check is field match this custom type
func (c UUIDComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == uuidType.Kind() && a.Type() == uuidType
	bok := b.Kind() == uuidType.Kind() && b.Type() == uuidType
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff records nothing.
func (c UUIDComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, _ *odiff.Changelog, _ []string, _ reflect.Value, _ reflect.Value, _ interface{}) error {
	return nil
}

// InsertParentDiffer do something with parent，
// uuid is leaf, so do not thing
func (c UUIDComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
	// do not thing
}

// Change is one modified field, addressed by a dotted path such as
// "Partners.0.Settlement".
type Change struct {
	Type string `json:"type"`
	Path string `json:"path"`
	From any    `json:"from"`
	To   any    `json:"to"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s: %v -> %v", c.Type, c.Path, c.From, c.To)
}

// OrderChanges lists what differs between before and after.
func OrderChanges(differ *odiff.Differ, before, after order.Order) ([]Change, error) {
	changelog, err := differ.Diff(before, after)
	if err != nil {
		return nil, fmt.Errorf("diff order %d: %w", after.ID, err)
	}
	changes := make([]Change, 0, len(changelog))
	for _, c := range changelog {
		changes = append(changes, Change{
			Type: c.Type,
			Path: strings.Join(c.Path, "."),
			From: c.From,
			To:   c.To,
		})
	}
	return changes, nil
}
