package testutil

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/hierarchy"
	"github.com/inferloop/tabanon/pkg/models"
)

// Fixture is a dataset together with a hierarchy for each quasi-identifier
type Fixture struct {
	Dataset *models.Dataset
	Index   *hierarchy.Index
}

// SingletonFixture has ten records with distinct zip codes. Level 0 of the
// zip hierarchy yields ten singleton classes and level 1 merges them all.
func SingletonFixture(t testing.TB) Fixture {
	t.Helper()
	zips := make([]string, 10)
	for i := range zips {
		zips[i] = fmt.Sprintf("z%d", i)
	}
	return zipFixture(t, zips)
}

// NineAndOneFixture has nine records sharing a zip code and one outlier
func NineAndOneFixture(t testing.TB) Fixture {
	t.Helper()
	zips := make([]string, 10)
	for i := range zips {
		zips[i] = "z0"
	}
	zips[9] = "z9"
	return zipFixture(t, zips)
}

func zipFixture(t testing.TB, zips []string) Fixture {
	attrs := []models.Attribute{
		{Name: "zip", Role: models.RoleQuasiIdentifier, Type: models.DataTypeString},
	}
	rows := make([][]string, len(zips))
	for i, z := range zips {
		rows[i] = []string{z}
	}
	ds, err := models.NewDataset(attrs, rows)
	require.NoError(t, err)

	domain := make([]string, 10)
	for i := range domain {
		domain[i] = fmt.Sprintf("z%d", i)
	}
	hrows := make([][]string, len(domain))
	for i, z := range domain {
		hrows[i] = []string{z, "*"}
	}
	h, err := hierarchy.FromRows("zip", hrows)
	require.NoError(t, err)
	idx, err := hierarchy.NewIndex(h)
	require.NoError(t, err)
	return Fixture{Dataset: ds, Index: idx}
}

// CensusRows is a small census extract: name, age, sex, zip, disease
var CensusRows = [][]string{
	{"Ada", "34", "female", "81667", "gastritis"},
	{"Ben", "45", "male", "81675", "flu"},
	{"Cleo", "66", "female", "81925", "bronchitis"},
	{"Dan", "70", "male", "81931", "pneumonia"},
	{"Eve", "34", "female", "81667", "flu"},
	{"Finn", "70", "male", "81931", "flu"},
	{"Gia", "45", "female", "81675", "gastritis"},
	{"Hal", "28", "male", "81925", "bronchitis"},
	{"Ivy", "28", "female", "81667", "flu"},
	{"Jon", "66", "male", "81931", "gastritis"},
	{"Kim", "34", "male", "81675", "pneumonia"},
	{"Lou", "45", "male", "81925", "flu"},
}

// CensusAttributes describes CensusRows
func CensusAttributes() []models.Attribute {
	return []models.Attribute{
		{Name: "name", Role: models.RoleIdentifier, Type: models.DataTypeString},
		{Name: "age", Role: models.RoleQuasiIdentifier, Type: models.DataTypeInteger},
		{Name: "sex", Role: models.RoleQuasiIdentifier, Type: models.DataTypeString},
		{Name: "zip", Role: models.RoleQuasiIdentifier, Type: models.DataTypeString},
		{Name: "disease", Role: models.RoleSensitive, Type: models.DataTypeString},
	}
}

// CensusFixture builds the census dataset with interval age, flat sex and
// redacted zip hierarchies.
func CensusFixture(t testing.TB) Fixture {
	t.Helper()
	ds, err := models.NewDataset(CensusAttributes(), CensusRows)
	require.NoError(t, err)

	ages, err := ds.DistinctValues("age")
	require.NoError(t, err)
	age, err := hierarchy.IntervalBuilder{Widths: []float64{10, 20}, Top: true}.Build("age", ages)
	require.NoError(t, err)

	sex, err := hierarchy.FromRows("sex", [][]string{{"female", "*"}, {"male", "*"}})
	require.NoError(t, err)

	zips, err := ds.DistinctValues("zip")
	require.NoError(t, err)
	zip, err := hierarchy.RedactionBuilder{Order: hierarchy.RightToLeft}.Build("zip", zips)
	require.NoError(t, err)

	idx, err := hierarchy.NewIndex(age, sex, zip)
	require.NoError(t, err)
	return Fixture{Dataset: ds, Index: idx}
}

// RandomFixture generates records over len(domains) quasi-identifiers named
// q0, q1, ... with domains[i] integer values each, plus a sensitive column
// "s" with sensitive distinct values. Each hierarchy halves its buckets per
// level and ends with "*".
func RandomFixture(t testing.TB, seed int64, records int, domains []int, sensitive int) Fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	attrs := make([]models.Attribute, 0, len(domains)+1)
	hs := make([]*hierarchy.Hierarchy, 0, len(domains))
	for i, size := range domains {
		name := "q" + strconv.Itoa(i)
		attrs = append(attrs, models.Attribute{Name: name, Role: models.RoleQuasiIdentifier, Type: models.DataTypeInteger})
		hs = append(hs, halvingHierarchy(t, name, size))
	}
	attrs = append(attrs, models.Attribute{Name: "s", Role: models.RoleSensitive, Type: models.DataTypeString})

	rows := make([][]string, records)
	for r := range rows {
		row := make([]string, 0, len(domains)+1)
		for _, size := range domains {
			row = append(row, strconv.Itoa(rng.Intn(size)))
		}
		row = append(row, "s"+strconv.Itoa(rng.Intn(sensitive)))
		rows[r] = row
	}

	ds, err := models.NewDataset(attrs, rows)
	require.NoError(t, err)
	idx, err := hierarchy.NewIndex(hs...)
	require.NoError(t, err)
	return Fixture{Dataset: ds, Index: idx}
}

func halvingHierarchy(t testing.TB, name string, size int) *hierarchy.Hierarchy {
	rows := make([][]string, size)
	for v := 0; v < size; v++ {
		row := []string{strconv.Itoa(v)}
		for width := 2; width < size; width *= 2 {
			lo := v / width * width
			row = append(row, fmt.Sprintf("%d-%d", lo, lo+width-1))
		}
		row = append(row, "*")
		rows[v] = row
	}
	h, err := hierarchy.FromRows(name, rows)
	require.NoError(t, err)
	return h
}

// MirroredFixture generates pairs of records (a, b) and (b, a) over two
// quasi-identifiers q0 and q1 with identical halving hierarchies, so every
// node [x, y] has the same classes, sizes and loss as [y, x].
func MirroredFixture(t testing.TB, seed int64, pairs, domain int) Fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	attrs := []models.Attribute{
		{Name: "q0", Role: models.RoleQuasiIdentifier, Type: models.DataTypeInteger},
		{Name: "q1", Role: models.RoleQuasiIdentifier, Type: models.DataTypeInteger},
		{Name: "s", Role: models.RoleSensitive, Type: models.DataTypeString},
	}
	rows := make([][]string, 0, 2*pairs)
	for i := 0; i < pairs; i++ {
		a, b := strconv.Itoa(rng.Intn(domain)), strconv.Itoa(rng.Intn(domain))
		s := "s" + strconv.Itoa(rng.Intn(3))
		rows = append(rows, []string{a, b, s}, []string{b, a, s})
	}

	ds, err := models.NewDataset(attrs, rows)
	require.NoError(t, err)
	idx, err := hierarchy.NewIndex(halvingHierarchy(t, "q0", domain), halvingHierarchy(t, "q1", domain))
	require.NoError(t, err)
	return Fixture{Dataset: ds, Index: idx}
}
