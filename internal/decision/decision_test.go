package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"slothlet/internal/modscan"
	"slothlet/internal/sanitize"
)

func TestDecide_SelfReferentialWinsOverMultiDefault(t *testing.T) {
	m := &modscan.ModuleDescriptor{SelfReferential: true, DefaultKind: modscan.DefaultNone}
	dir := &modscan.DirectoryDescriptor{MultiDefault: true}

	d := Decide(m, dir, false)
	assert.Equal(t, ActionFlattenValue, d.Action)
	assert.Equal(t, ReasonSelfReferential, d.Reason)
}

func TestDecide_MultiDefaultWithDefaultPreservesNamespace(t *testing.T) {
	m := &modscan.ModuleDescriptor{DefaultKind: modscan.DefaultFunction}
	dir := &modscan.DirectoryDescriptor{MultiDefault: true}

	d := Decide(m, dir, false)
	assert.Equal(t, ActionPreserveAsNamespace, d.Action)
	assert.Equal(t, ReasonMultiDefaultWithDefault, d.Reason)
}

func TestDecide_MultiDefaultWithoutDefaultLiftsNamedExports(t *testing.T) {
	m := &modscan.ModuleDescriptor{DefaultKind: modscan.DefaultNone, NamedExports: []string{"Foo"}}
	dir := &modscan.DirectoryDescriptor{MultiDefault: true}

	d := Decide(m, dir, false)
	assert.Equal(t, ActionLiftNamedExports, d.Action)
	assert.Equal(t, ReasonMultiDefaultWithoutDefault, d.Reason)
}

func TestDecide_FlattenSingleFileDirectory(t *testing.T) {
	m := &modscan.ModuleDescriptor{DefaultKind: modscan.DefaultNone}
	dir := &modscan.DirectoryDescriptor{Strategy: modscan.StrategySingleFile, FlattenSingle: true}

	d := Decide(m, dir, false)
	assert.Equal(t, ActionLiftModuleContents, d.Action)
	assert.Equal(t, ReasonFlattenSingleFileDirectory, d.Reason)
}

func TestDecide_SingleFileDirectoryNotFlattenedFallsThrough(t *testing.T) {
	m := &modscan.ModuleDescriptor{DefaultKind: modscan.DefaultNone}
	dir := &modscan.DirectoryDescriptor{Strategy: modscan.StrategySingleFile, FlattenSingle: false}

	d := Decide(m, dir, false)
	assert.Equal(t, ActionPreserveAsNamespace, d.Action)
	assert.Equal(t, ReasonTraditional, d.Reason)
}

func TestDecide_RootContributorOnlyAtRoot(t *testing.T) {
	m := &modscan.ModuleDescriptor{DefaultKind: modscan.DefaultFunction}
	dir := &modscan.DirectoryDescriptor{Strategy: modscan.StrategyMultiFile}

	d := Decide(m, dir, true)
	assert.Equal(t, ActionRootContributor, d.Action)
	assert.Equal(t, ReasonRootContributor, d.Reason)

	d = Decide(m, dir, false)
	assert.Equal(t, ActionPreserveAsNamespace, d.Action)
	assert.Equal(t, ReasonTraditional, d.Reason)
}

func TestDecide_TraditionalFallback(t *testing.T) {
	m := &modscan.ModuleDescriptor{DefaultKind: modscan.DefaultNone, NamedExports: []string{"Foo", "Bar"}}
	dir := &modscan.DirectoryDescriptor{Strategy: modscan.StrategyMultiFile}

	d := Decide(m, dir, false)
	assert.Equal(t, ActionPreserveAsNamespace, d.Action)
	assert.Equal(t, ReasonTraditional, d.Reason)
}

func TestPreferredKey_PrefersExportNameWhenMoreAcronymBoundaries(t *testing.T) {
	got := PreferredKey("AutoIP", "autoIp", sanitize.Options{})
	assert.Equal(t, "AutoIP", got)
}

func TestPreferredKey_FallsBackToFileKeyWhenNotCaseVariants(t *testing.T) {
	got := PreferredKey("Shout", "greet", sanitize.Options{})
	assert.Equal(t, "greet", got)
}

func TestPreferredKey_IdenticalReturnsFileKey(t *testing.T) {
	got := PreferredKey("Widget", "Widget", sanitize.Options{})
	assert.Equal(t, "Widget", got)
}
