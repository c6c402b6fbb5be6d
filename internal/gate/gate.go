// Package gate answers per-organization feature-gate queries.
//
// Gates decide whether calling code routes reads and writes to the legacy
// or the new representation. The sync engine never consults them: both
// representations are kept in sync regardless of gate state.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/autosync/internal/store"
)

// Known migration features.
const (
	NewUserPanel     = "new_user_panel"
	NewBasket        = "new_basket"
	SalesTransaction = "sales_transaction"
	PartRequirements = "part_requirements"
)

var labels = map[string]string{
	NewUserPanel:     "New UserPanel",
	NewBasket:        "New Basket",
	SalesTransaction: "Sales Transaction",
	PartRequirements: "Part Requirements",
}

// Features returns the known feature names in declaration order.
func Features() []string {
	return []string{NewUserPanel, NewBasket, SalesTransaction, PartRequirements}
}

// Label returns the display name of a feature, or the name itself when the
// feature is not a known one.
func Label(feature string) string {
	if l, ok := labels[feature]; ok {
		return l
	}
	return feature
}

// ErrFeatureDisabled is returned by Require when the gate is off.
var ErrFeatureDisabled = errors.New("feature disabled")

// DisabledError names the feature and organization a Require call was
// refused for. It matches ErrFeatureDisabled with errors.Is.
type DisabledError struct {
	Feature      string
	Organization string
}

func (e *DisabledError) Error() string {
	if e.Organization == "" {
		return fmt.Sprintf("not available without %s switch (no organization)", e.Feature)
	}
	return fmt.Sprintf("not available without %s switch (organization %s)", e.Feature, e.Organization)
}

func (e *DisabledError) Is(target error) bool {
	return target == ErrFeatureDisabled
}

type orgKey struct{}

// WithOrganization returns a context carrying the current organization.
func WithOrganization(ctx context.Context, org string) context.Context {
	return context.WithValue(ctx, orgKey{}, org)
}

// OrganizationFrom returns the organization carried by ctx, or "".
func OrganizationFrom(ctx context.Context) string {
	org, _ := ctx.Value(orgKey{}).(string)
	return org
}

// Gates reads and writes switches in the record store.
type Gates struct {
	store *store.Store
}

// New creates Gates over st.
func New(st *store.Store) *Gates {
	return &Gates{store: st}
}

// IsActive reports whether feature is switched on for org. An empty org
// falls back to the organization in ctx. A switch that was never set is
// inactive, and so is every feature when no organization is known.
func (g *Gates) IsActive(ctx context.Context, feature, org string) (bool, error) {
	if org == "" {
		org = OrganizationFrom(ctx)
	}
	if org == "" {
		return false, nil
	}
	sw, err := g.store.GetSwitch(ctx, org, feature)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sw.Active, nil
}

// Set turns a feature on or off for org.
func (g *Gates) Set(ctx context.Context, feature, org string, active bool, note string) error {
	return g.store.SetSwitch(ctx, store.Switch{Organization: org, Feature: feature, Active: active, Note: note})
}

// List returns the switches of org, or of every organization when org is
// empty.
func (g *Gates) List(ctx context.Context, org string) ([]store.Switch, error) {
	return g.store.ListSwitches(ctx, org)
}

// Require runs fn only when feature is active for the organization in ctx.
// Otherwise it returns a *DisabledError without calling fn.
func (g *Gates) Require(ctx context.Context, feature string, fn func(ctx context.Context) error) error {
	org := OrganizationFrom(ctx)
	active, err := g.IsActive(ctx, feature, org)
	if err != nil {
		return err
	}
	if !active {
		return &DisabledError{Feature: feature, Organization: org}
	}
	return fn(ctx)
}

// Describe renders a switch as "org: Feature Label - Active".
func Describe(sw store.Switch) string {
	state := "Inactive"
	if sw.Active {
		state = "Active"
	}
	return fmt.Sprintf("%s: %s - %s", sw.Organization, Label(sw.Feature), state)
}
