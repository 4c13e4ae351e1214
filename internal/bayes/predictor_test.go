package bayes

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func datingPredictor(t *testing.T) *Predictor {
	t.Helper()
	p, err := NewPredictor(0.5)
	require.NoError(t, err)

	rows := []struct {
		feature  string
		value    string
		positive int
		total    int
	}{
		{"age", "20-25", 30, 100},
		{"age", "26-30", 45, 100},
		{"interests", "sports", 40, 80},
		{"interests", "reading", 35, 70},
		{"education", "bachelors", 60, 100},
		{"smoking", "no", 70, 100},
	}
	for _, r := range rows {
		require.NoError(t, p.Record(r.feature, String(r.value), r.positive, r.total))
	}
	return p
}

func TestPredictorRecordValidation(t *testing.T) {
	p, err := NewPredictor(0.5)
	require.NoError(t, err)

	tests := []struct {
		name     string
		feature  string
		positive int
		total    int
		wantErr  bool
	}{
		{name: "valid", feature: "age", positive: 3, total: 10},
		{name: "all positive", feature: "age", positive: 10, total: 10},
		{name: "none positive", feature: "age", positive: 0, total: 10},
		{name: "zero total", feature: "age", positive: 0, total: 0, wantErr: true},
		{name: "negative total", feature: "age", positive: 0, total: -1, wantErr: true},
		{name: "positive exceeds total", feature: "age", positive: 11, total: 10, wantErr: true},
		{name: "negative positive", feature: "age", positive: -1, total: 10, wantErr: true},
		{name: "empty feature", feature: "", positive: 1, total: 10, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Record(tt.feature, String("v"), tt.positive, tt.total)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			e, ok := p.Lookup(tt.feature, String("v"))
			require.True(t, ok)
			assert.Equal(t, float64(tt.positive)/float64(tt.total), e.Likelihood)
		})
	}
}

func TestPredictorRecordLastWriteWins(t *testing.T) {
	p, err := NewPredictor(0.5)
	require.NoError(t, err)
	require.NoError(t, p.Record("age", String("20-25"), 30, 100))
	require.NoError(t, p.Record("age", String("20-25"), 1, 4))

	e, ok := p.Lookup("age", String("20-25"))
	require.True(t, ok)
	assert.Equal(t, 0.25, e.Likelihood)
	assert.Equal(t, 4, e.Total)
	assert.Len(t, p.Entries(), 1)
}

func TestNewPredictorRejectsPrior(t *testing.T) {
	for _, prior := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewPredictor(prior)
		assert.ErrorIs(t, err, ErrInvalidInput, "prior %v", prior)
	}
}

func TestPredictSingleFeatureRoundTrip(t *testing.T) {
	p := datingPredictor(t)

	est, err := p.PredictWithPrior([]FeatureInput{{Name: "age", Value: String("20-25")}}, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 0.3, est.Probability)
	assert.Equal(t, 1.0, est.Confidence)
	assert.Equal(t, []UsedFeature{{Feature: "age", Value: String("20-25"), Likelihood: 0.3}}, est.Used)
	assert.Empty(t, est.Ignored)
}

func TestPredictUnknownValue(t *testing.T) {
	p := datingPredictor(t)

	est, err := p.Predict([]FeatureInput{{Name: "age", Value: String("99-100")}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, est.Probability)
	assert.Equal(t, 0.0, est.Confidence)
	assert.Empty(t, est.Used)
	assert.Equal(t, []FeatureRef{{Feature: "age", Value: String("99-100")}}, est.Ignored)
}

func TestPredictNoFeatures(t *testing.T) {
	p := datingPredictor(t)
	est, err := p.Predict(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, est.Probability)
	assert.Equal(t, 0.0, est.Confidence)
	assert.Empty(t, est.Trace)
}

func TestPredictChainAndTrace(t *testing.T) {
	p := datingPredictor(t)

	features := []FeatureInput{
		{Name: "age", Value: String("20-25")},
		{Name: "interests", Value: String("sports")},
		{Name: "height", Value: String("tall")},
		{Name: "education", Value: String("bachelors")},
		{Name: "smoking", Value: String("no")},
	}
	est, err := p.Predict(features)
	require.NoError(t, err)

	// odds 1 * (3/7) * 1 * (3/2) * (7/3) = 1.5
	assert.InDelta(t, 0.6, est.Probability, 1e-12)
	assert.Equal(t, 0.8, est.Confidence)
	assert.Len(t, est.Used, 4)
	assert.Equal(t, []FeatureRef{{Feature: "height", Value: String("tall")}}, est.Ignored)

	require.Len(t, est.Trace, 5)
	for i := 1; i < len(est.Trace); i++ {
		assert.Equal(t, est.Trace[i-1].After, est.Trace[i].Before)
	}
	assert.False(t, est.Trace[2].Known)
	assert.Equal(t, est.Trace[2].Before, est.Trace[2].After)

	// order only changes the trace, not the result
	reversed := make([]FeatureInput, len(features))
	for i, f := range features {
		reversed[len(features)-1-i] = f
	}
	rev, err := p.Predict(reversed)
	require.NoError(t, err)
	assert.InDelta(t, est.Probability, rev.Probability, 1e-12)
	assert.Equal(t, "smoking", rev.Trace[0].Feature)
}

func TestPredictAbsorbingExtremes(t *testing.T) {
	tests := []struct {
		name     string
		positive int
		want     float64
	}{
		{name: "zero likelihood absorbs at 0", positive: 0, want: 0},
		{name: "unit likelihood absorbs at 1", positive: 10, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := datingPredictor(t)
			require.NoError(t, p.Record("smoking", String("yes"), tt.positive, 10))

			est, err := p.Predict([]FeatureInput{
				{Name: "smoking", Value: String("yes")},
				{Name: "age", Value: String("20-25")},
				{Name: "education", Value: String("bachelors")},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, est.Probability)
			assert.Equal(t, 1.0, est.Confidence)

			want := []TraceStep{
				{Feature: "smoking", Value: String("yes"), Known: true, Likelihood: tt.want, Before: 0.5, After: tt.want},
				{Feature: "age", Value: String("20-25"), Known: true, Likelihood: 0.3, Before: tt.want, After: tt.want, Absorbed: true},
				{Feature: "education", Value: String("bachelors"), Known: true, Likelihood: 0.6, Before: tt.want, After: tt.want, Absorbed: true},
			}
			if diff := cmp.Diff(want, est.Trace); diff != "" {
				t.Errorf("trace mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPredictWithPriorValidation(t *testing.T) {
	p := datingPredictor(t)
	for _, prior := range []float64{0, 1, 2} {
		_, err := p.PredictWithPrior(nil, prior)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestFeatureImportance(t *testing.T) {
	p := datingPredictor(t)

	got := p.FeatureImportance("age")
	require.Len(t, got, 2)
	assert.Equal(t, String("20-25"), got[0].Value)
	assert.InDelta(t, -20.0, got[0].Score, 1e-9)
	assert.Equal(t, String("26-30"), got[1].Value)
	assert.InDelta(t, -5.0, got[1].Score, 1e-9)

	smoking := p.FeatureImportance("smoking")
	require.Len(t, smoking, 1)
	assert.InDelta(t, 20.0, smoking[0].Score, 1e-9)

	assert.Empty(t, p.FeatureImportance("height"))
	assert.NotNil(t, p.FeatureImportance("height"))
	assert.Equal(t, []string{"age", "interests", "education", "smoking"}, p.Features())
}

func TestValueKeys(t *testing.T) {
	p, err := NewPredictor(0.5)
	require.NoError(t, err)
	require.NoError(t, p.Record("children", Int(2), 1, 4))
	require.NoError(t, p.Record("children", String("2"), 3, 4))
	require.NoError(t, p.Record("pets", Bool(true), 2, 4))

	a, ok := p.Lookup("children", Int(2))
	require.True(t, ok)
	b, ok := p.Lookup("children", String("2"))
	require.True(t, ok)
	assert.NotEqual(t, a.Likelihood, b.Likelihood)

	_, ok = p.Lookup("pets", Bool(false))
	assert.False(t, ok)
}

func TestValueEncoding(t *testing.T) {
	var in []FeatureInput
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"a","value":"x"},{"name":"b","value":3},{"name":"c","value":true}]`), &in))
	assert.Equal(t, []FeatureInput{{"a", String("x")}, {"b", Int(3)}, {"c", Bool(true)}}, in)

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"a","value":"x"},{"name":"b","value":3},{"name":"c","value":true}]`, string(out))

	var bad Value
	assert.ErrorIs(t, json.Unmarshal([]byte(`1.5`), &bad), ErrInvalidInput)
	assert.ErrorIs(t, json.Unmarshal([]byte(`null`), &bad), ErrInvalidInput)

	var nullInput FeatureInput
	err = json.Unmarshal([]byte(`{"name":"age","value":null}`), &nullInput)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var row struct {
		Value Value `yaml:"value"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("value: 7\n"), &row))
	assert.Equal(t, Int(7), row.Value)

	v, err := ParseValue(KindBool, "true")
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)
	_, err = ParseValue(KindInt, "seven")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestZeroValuePredictor(t *testing.T) {
	var p Predictor
	require.NoError(t, p.Record("age", String("20-25"), 3, 10))
	assert.Equal(t, []string{"age"}, p.Features())

	_, err := p.Predict([]FeatureInput{{Name: "age", Value: String("20-25")}})
	assert.ErrorIs(t, err, ErrEmptyState)

	est, err := p.PredictWithPrior([]FeatureInput{{Name: "age", Value: String("20-25")}}, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, est.Probability, 1e-12)
}

func TestTraceKeepsZeroLikelihood(t *testing.T) {
	p := datingPredictor(t)
	require.NoError(t, p.Record("smoking", String("yes"), 0, 10))

	est, err := p.Predict([]FeatureInput{{Name: "smoking", Value: String("yes")}})
	require.NoError(t, err)

	data, err := json.Marshal(est.Trace)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"feature":"smoking","value":"yes","known":true,"likelihood":0,"before":0.5,"after":0}]`, string(data))
}
