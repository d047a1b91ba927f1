package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/academico/academico/internal/app"
	_ "github.com/academico/academico/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
