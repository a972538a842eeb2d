package command

import (
	"errors"
	"strings"
	"testing"
)

func TestTaskTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		taskType TaskType
		expected string
	}{
		{"Decode", TaskTypeDecode, "decode"},
		{"Encode", TaskTypeEncode, "encode"},
		{"Concat", TaskTypeConcat, "concat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.taskType) != tt.expected {
				t.Errorf("%s = %s; want %s", tt.name, string(tt.taskType), tt.expected)
			}
		})
	}
}

// MockCommand is a test implementation of the Command interface
type MockCommand struct {
	args        []string
	validateErr error
	taskType    TaskType
	inputPath   string
	outputPath  string
}

func (m *MockCommand) BuildArgs() []string     { return m.args }
func (m *MockCommand) Validate() error         { return m.validateErr }
func (m *MockCommand) DryRun() (string, error) { return DryRun(m) }
func (m *MockCommand) GetTaskType() TaskType   { return m.taskType }
func (m *MockCommand) GetInputPath() string    { return m.inputPath }
func (m *MockCommand) GetOutputPath() string   { return m.outputPath }

func TestCommandInterface(t *testing.T) {
	var _ Command = (*MockCommand)(nil)
}

func TestDryRun(t *testing.T) {
	mock := &MockCommand{
		args:     []string{"-i", "in.mp4", "-f", "rawvideo", StdoutPipe},
		taskType: TaskTypeDecode,
	}

	line, err := mock.DryRun()
	if err != nil {
		t.Fatalf("DryRun failed: %v", err)
	}
	if line != "ffmpeg -i in.mp4 -f rawvideo pipe:1" {
		t.Errorf("DryRun = %q", line)
	}
}

func TestDryRun_InvalidCommand(t *testing.T) {
	mock := &MockCommand{validateErr: errors.New("no input"), taskType: TaskTypeEncode}

	_, err := mock.DryRun()
	if err == nil {
		t.Fatal("Expected error for invalid command")
	}
	if !strings.Contains(err.Error(), "invalid encode command") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGlobalArgs(t *testing.T) {
	args := strings.Join(GlobalArgs(), " ")
	if !strings.Contains(args, "-nostdin") || !strings.Contains(args, "-loglevel error") {
		t.Errorf("GlobalArgs = %q", args)
	}
}
