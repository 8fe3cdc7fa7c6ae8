package commands

// Host command ids.
const (
	OpenProfilesPanel         = "aksmigrate.openProfilesPanel"
	ConfigureSourcesTargets   = "aksmigrate.configureSourcesTargets"
	ConfigureLabelSelector    = "aksmigrate.configureLabelSelector"
	ConfigureCustomRules      = "aksmigrate.configureCustomRules"
	OverrideAnalyzerBinaries  = "aksmigrate.overrideAnalyzerBinaries"
	OverrideRPCServerBinaries = "aksmigrate.overrideRPCServerBinaries"
	ModelProviderSettingsOpen = "aksmigrate.modelProviderSettingsOpen"
	GetSolution               = "aksmigrate.getSolution"
	GetSolutionWithContext    = "aksmigrate.getSolutionWithContext"
	ViewFix                   = "aksmigrate.diffView.viewFix"
	ApplyFile                 = "aksmigrate.applyFile"
	DiscardFile               = "aksmigrate.discardFile"
	RunAnalysis               = "aksmigrate.runAnalysis"
	StartServer               = "aksmigrate.startServer"
	StopServer                = "aksmigrate.stopServer"
	CloseWizard               = "aksmigrate.closeWizard"
)

// IDs lists every host command the extension registers on activation.
var IDs = []string{
	OpenProfilesPanel,
	ConfigureSourcesTargets,
	ConfigureLabelSelector,
	ConfigureCustomRules,
	OverrideAnalyzerBinaries,
	OverrideRPCServerBinaries,
	ModelProviderSettingsOpen,
	GetSolution,
	GetSolutionWithContext,
	ViewFix,
	ApplyFile,
	DiscardFile,
	RunAnalysis,
	StartServer,
	StopServer,
	CloseWizard,
}
