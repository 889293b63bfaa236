package algorithm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLoads(t *testing.T) {
	r := Default()
	require.NotNil(t, r)

	for _, id := range []string{
		"logistic_regression", "random_forest", "random_forest_regressor", "svm",
		"linear_regression", "ridge", "decision_tree", "knn",
		"gradient_boosting", "xgboost", "kmeans", "dbscan",
	} {
		d, ok := r.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, id, d.ID)
	}

	assert.Equal(t, 2.0, r.Cost().Optuna.PerTrial)
	assert.Equal(t, 100, r.Cost().Optuna.MaxTrials)
}

func TestGetUnknown(t *testing.T) {
	d, ok := Default().Get("does_not_exist")
	assert.False(t, ok)
	assert.Nil(t, d)

	var nilRegistry *Registry
	d, ok = nilRegistry.Get("kmeans")
	assert.False(t, ok)
	assert.Nil(t, d)
	assert.Empty(t, nilRegistry.List())
}

func TestListSortedByID(t *testing.T) {
	list := Default().List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}

func TestForProblemType(t *testing.T) {
	clustering := Default().ForProblemType(Clustering)
	var ids []string
	for _, d := range clustering {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"dbscan", "kmeans"}, ids)

	for _, d := range Default().ForProblemType(Regression) {
		assert.True(t, d.Supports(Regression))
		assert.False(t, d.Supports(Clustering))
	}
}

func TestKMeansClusteringMetrics(t *testing.T) {
	d, ok := Default().Get("kmeans")
	require.True(t, ok)
	assert.Contains(t, d.SupportedMetrics, "silhouette_score")
	assert.NotContains(t, d.SupportedMetrics, "accuracy")
	assert.Equal(t, []string{"silhouette_score", "inertia"}, d.DefaultMetrics)
}

func TestDescriptorTunable(t *testing.T) {
	d, ok := Default().Get("logistic_regression")
	require.True(t, ok)
	tunable := d.Tunable()
	require.Len(t, tunable, 3)
	assert.Equal(t, "C", tunable[0].Field)
	assert.True(t, tunable[0].Log)
}

const validCatalog = `
cost:
  optuna: {perTrial: 1.5, maxTrials: 20}
algorithms:
  - id: toy
    name: Toy
    capabilities:
      problemTypes: [classification]
    hyperparameters:
      - {key: depth, kind: number, default: 3, min: 1, max: 10}
      - {key: mode, kind: select, default: a, options: [{value: a}, {value: b}]}
    validation:
      fieldRules:
        depth: [{type: integer}]
    cost: {base: 1, perSample: 0.5}
    supportedMetrics: [accuracy]
    defaultMetrics: [accuracy]
    supportedPlots: [confusion_matrix]
    defaultPlots: []
`

func TestLoad(t *testing.T) {
	r, err := Load(strings.NewReader(validCatalog))
	require.NoError(t, err)

	d, ok := r.Get("toy")
	require.True(t, ok)
	assert.Len(t, d.Fields, 2)
	assert.Equal(t, 1.5, r.Cost().Optuna.PerTrial)
	assert.Equal(t, 0.5, d.Cost.PerSample)
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		want    string
	}{
		{
			name:    "duplicate field key",
			replace: [2]string{"key: mode", "key: depth"},
			want:    `duplicate field key "depth"`,
		},
		{
			name:    "select default not an option",
			replace: [2]string{"default: a,", "default: z,"},
			want:    "is not an option",
		},
		{
			name:    "numeric default out of range",
			replace: [2]string{"default: 3,", "default: 30,"},
			want:    "out of range",
		},
		{
			name:    "rule on unknown field",
			replace: [2]string{"depth: [{type: integer}]", "width: [{type: integer}]"},
			want:    `unknown field "width"`,
		},
		{
			name:    "default metric not supported",
			replace: [2]string{"defaultMetrics: [accuracy]", "defaultMetrics: [rmse]"},
			want:    "default metrics",
		},
		{
			name:    "unknown field kind",
			replace: [2]string{"kind: number", "kind: dial"},
			want:    "Kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := strings.Replace(validCatalog, tt.replace[0], tt.replace[1], 1)
			_, err := Load(strings.NewReader(src))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	src := validCatalog + strings.SplitN(validCatalog, "algorithms:\n", 2)[1]
	_, err := Load(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate algorithm id "toy"`)
}
