package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type greetingOptions struct {
	Name string `mapstructure:"name"`
}

type testOptions struct {
	Greeting  *greetingOptions `mapstructure:"greeting"`
	completed bool
}

func newTestOptions() *testOptions {
	return &testOptions{Greeting: &greetingOptions{}}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("greeting")
	fs.StringVar(&o.Greeting.Name, "greeting.name", o.Greeting.Name, "Who to greet.")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.Greeting.Name == "" {
		return errors.New("greeting.name is required")
	}
	return nil
}

func execute(t *testing.T, args []string, extra ...Option) (*testOptions, bool, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	opts := newTestOptions()
	ran := false
	all := append([]Option{
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	}, extra...)

	if args == nil {
		// cobra falls back to os.Args on a nil slice
		args = []string{}
	}
	a := NewApp("app-test", "test app", all...)
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	return opts, ran, err
}

func TestApp_FlagValue(t *testing.T) {
	opts, ran, err := execute(t, []string{"--greeting.name=flag"})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "flag", opts.Greeting.Name)
}

func TestApp_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting:\n  name: file\n"), 0o644))

	opts, ran, err := execute(t, []string{"-c", path})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "file", opts.Greeting.Name)
}

func TestApp_FlagOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting:\n  name: file\n"), 0o644))

	opts, _, err := execute(t, []string{"-c", path, "--greeting.name", "flag"})
	require.NoError(t, err)
	assert.Equal(t, "flag", opts.Greeting.Name)
}

func TestApp_Environment(t *testing.T) {
	t.Setenv("APP_TEST_GREETING_NAME", "env")

	opts, ran, err := execute(t, nil)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "env", opts.Greeting.Name)
}

func TestApp_MissingExplicitConfig(t *testing.T) {
	_, ran, err := execute(t, []string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
	assert.False(t, ran)
}

func TestApp_ValidationFailure(t *testing.T) {
	_, ran, err := execute(t, nil)
	require.EqualError(t, err, "greeting.name is required")
	assert.False(t, ran)
}

func TestApp_RejectsPositionalArgs(t *testing.T) {
	_, ran, err := execute(t, []string{"--greeting.name=x", "extra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not take any arguments")
	assert.False(t, ran)
}

func TestApp_NoConfig(t *testing.T) {
	opts, ran, err := execute(t, []string{"--greeting.name=plain"}, WithNoConfig())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "plain", opts.Greeting.Name)

	a := NewApp("app-test", "test app", WithOptions(newTestOptions()), WithNoConfig())
	assert.Nil(t, a.Command().Flags().Lookup("config"))
}
