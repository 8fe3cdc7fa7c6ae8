package profile

// Bundled returns the compiled-in read-only profiles. A fresh slice is
// returned on every call so callers may append to it.
func Bundled() []AnalysisProfile {
	return []AnalysisProfile{
		{
			ID:              "aks-java-quarkus",
			Name:            "Java EE to Quarkus on AKS",
			Mode:            "source-only",
			Sources:         []string{"java-ee"},
			Targets:         []string{"quarkus", "azure-aks"},
			LabelSelector:   BuildLabelSelector([]string{"java-ee"}, []string{"quarkus", "azure-aks"}),
			CustomRules:     []string{},
			UseDefaultRules: true,
			ReadOnly:        true,
		},
		{
			ID:              "aks-springboot",
			Name:            "Spring Boot on AKS",
			Mode:            "source-only",
			Sources:         []string{"springboot"},
			Targets:         []string{"azure-aks", "cloud-readiness"},
			LabelSelector:   BuildLabelSelector([]string{"springboot"}, []string{"azure-aks", "cloud-readiness"}),
			CustomRules:     []string{},
			UseDefaultRules: true,
			ReadOnly:        true,
		},
	}
}
