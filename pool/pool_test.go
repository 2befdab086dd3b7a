package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/runner"
)

func TestRunCollectsEveryJobsResultInOrder(t *testing.T) {
	jobs := make([]Job, 3)
	for i := range jobs {
		i := i
		jobs[i] = Job{
			Name: []string{"a", "b", "c"}[i],
			Program: func() conc.Action {
				return conc.Stop()
			},
			Config: runner.DefaultConfig(),
		}
	}

	out, err := Run(context.Background(), 2, jobs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, out[i].Name)
		require.NotEmpty(t, out[i].Result.Executions)
	}
}
