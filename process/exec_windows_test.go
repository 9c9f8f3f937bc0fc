package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLineIsVerbatimJoin(t *testing.T) {
	argv := []string{"child", "a b", `already "quoted"`, `c:\path with space`}
	cmd := newCommand(`c:\app\child.exe`, argv)

	require.NotNil(t, cmd.SysProcAttr)
	assert.Equal(t, `child a b already "quoted" c:\path with space`,
		cmd.SysProcAttr.CmdLine)
}
