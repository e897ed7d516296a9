package agenttool

// ToolID names one tool of the closed tool set.
type ToolID int

//go:generate go tool golang.org/x/tools/cmd/stringer -type=ToolID -trimprefix=Tool

const (
	ToolModifyCode ToolID = iota
	ToolDeleteFile
	ToolListFiles
	ToolReadFile
	ToolCommitAndPush
	ToolCreateBranch
	ToolCheckoutBranch
	ToolGetRepoStatus
	ToolGenerateDiff
	ToolStashChanges
	ToolCreatePullRequest
	ToolRunCommand
	ToolSearchCode
	ToolRunTests
	ToolInstallDependencies
	ToolAnalyzeCode
	ToolLintCode
)

const numTools = int(ToolLintCode) + 1

// AllTools returns every ToolID in declaration order.
func AllTools() []ToolID {
	ids := make([]ToolID, numTools)
	for i := range ids {
		ids[i] = ToolID(i)
	}
	return ids
}

// ParseToolID maps a tool name such as "ReadFile" to its ToolID.
func ParseToolID(name string) (ToolID, bool) {
	for _, id := range AllTools() {
		if id.String() == name {
			return id, true
		}
	}
	return 0, false
}
