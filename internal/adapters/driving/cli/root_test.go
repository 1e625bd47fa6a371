package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SkyMychal/SmartSPD-v2/internal/logger"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "smartspd", rootCmd.Use)
}

func TestRootCmd_HasCommands(t *testing.T) {
	commands := rootCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "ingest")
	assert.Contains(t, commandNames, "retry")
	assert.Contains(t, commandNames, "query")
	assert.Contains(t, commandNames, "suggest")
	assert.Contains(t, commandNames, "versions")
	assert.Contains(t, commandNames, "status")
	assert.Contains(t, commandNames, "settings")
	assert.Contains(t, commandNames, "version")
}

func TestRootCmd_VerboseFlagEnablesLogger(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	defer logger.SetVerbose(false)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--verbose", "version"})
	defer func() {
		rootCmd.SetArgs(nil)
		verbose = false
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.True(t, logger.IsVerbose())
}

func TestSetServices_WiresEverything(t *testing.T) {
	cleanup := clearTestServices()
	defer cleanup()

	SetServices(Services{
		Batch:     &fakeBatchProcessor{},
		Query:     &fakeQueryService{},
		Versions:  &fakeVersionControl{},
		Documents: &fakeDocumentStore{},
		Vectors:   &fakeVectorIndex{},
	})

	assert.NotNil(t, batchService)
	assert.NotNil(t, queryService)
	assert.NotNil(t, versionService)
	assert.NotNil(t, documentStore)
	assert.NotNil(t, vectorIndex)
	assert.Nil(t, configStore)
}

func TestSetVersion(t *testing.T) {
	originalVersion := version
	defer func() { version = originalVersion }()

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)

	SetVersion("")
	assert.Equal(t, "1.2.3", version)
}
