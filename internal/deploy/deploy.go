// Package deploy holds the deploy step catalog and turns a deployment
// request into the command plan shown to the user.
package deploy

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownTarget is returned for a target not in Targets.
	ErrUnknownTarget = errors.New("unknown deployment target")
	// ErrNoStakeholders is returned when no stakeholder role is selected.
	ErrNoStakeholders = errors.New("at least one stakeholder must be selected")
	// ErrUnknownStakeholder is returned for a role not in Roles.
	ErrUnknownStakeholder = errors.New("unknown stakeholder role")
)

// Target is a cluster environment the application can be deployed to.
type Target struct {
	ID          string
	Name        string
	Description string
	Namespace   string
}

// Role is a stakeholder responsible for part of the deployment.
type Role struct {
	ID          string
	Name        string
	Description string
	Tasks       []string
}

// Targets lists the supported deployment environments.
var Targets = []Target{
	{ID: "development", Name: "Development Environment", Description: "Deploy to development cluster for testing and validation", Namespace: "dev"},
	{ID: "staging", Name: "Staging Environment", Description: "Deploy to staging for pre-production validation", Namespace: "staging"},
	{ID: "production", Name: "Production Environment", Description: "Deploy to production AKS cluster", Namespace: "production"},
}

// Roles lists the stakeholder roles.
var Roles = []Role{
	{
		ID: "developer", Name: "Developer", Description: "Handle application deployment and testing",
		Tasks: []string{
			"Deploy application to development environment",
			"Validate application functionality",
			"Monitor deployment logs and metrics",
			"Perform smoke testing",
		},
	},
	{
		ID: "devops-engineer", Name: "DevOps Engineer", Description: "Manage infrastructure and CI/CD deployment",
		Tasks: []string{
			"Configure CI/CD pipelines for AKS deployment",
			"Set up monitoring and observability",
			"Manage secrets and configuration",
			"Handle infrastructure scaling and updates",
		},
	},
	{
		ID: "platform-engineer", Name: "Platform Engineer", Description: "Oversee platform architecture and operations",
		Tasks: []string{
			"Review platform compliance and security",
			"Configure service mesh and networking",
			"Manage resource quotas and policies",
			"Ensure platform best practices",
		},
	},
	{
		ID: "team-lead", Name: "Team Lead", Description: "Coordinate deployment strategy and approval",
		Tasks: []string{
			"Approve deployment to production",
			"Coordinate cross-team dependencies",
			"Manage deployment rollback strategies",
			"Oversee deployment timeline and milestones",
		},
	},
}

// FindTarget looks a target up by id.
func FindTarget(id string) (Target, bool) {
	i := slices.IndexFunc(Targets, func(t Target) bool { return t.ID == id })
	if i < 0 {
		return Target{}, false
	}
	return Targets[i], true
}

// FindRole looks a role up by id.
func FindRole(id string) (Role, bool) {
	i := slices.IndexFunc(Roles, func(r Role) bool { return r.ID == id })
	if i < 0 {
		return Role{}, false
	}
	return Roles[i], true
}

// Request is a deployment the user asked for.
type Request struct {
	Target       string   `json:"target"`
	Stakeholders []string `json:"stakeholders"`
}

// Validate checks the target and stakeholder ids.
func (r Request) Validate() error {
	if _, ok := FindTarget(r.Target); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, r.Target)
	}
	if len(r.Stakeholders) == 0 {
		return ErrNoStakeholders
	}
	for _, s := range r.Stakeholders {
		if _, ok := FindRole(s); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStakeholder, s)
		}
	}
	return nil
}

// Plan returns the shell commands that deploy the application for req.
// Quarkus projects deploy through the Kubernetes extension, others apply
// the manifests generated into manifestDir.
func Plan(req Request, quarkus bool, manifestDir string) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target, _ := FindTarget(req.Target)
	ns := target.Namespace

	var plan []string
	if quarkus {
		plan = append(plan,
			fmt.Sprintf("mvn clean package -Dquarkus.kubernetes.deploy=true -Dquarkus.kubernetes.namespace=%s", ns),
		)
	} else {
		plan = append(plan,
			"docker build -t myapp:latest .",
			"docker tag myapp:latest myregistry.azurecr.io/myapp:latest",
			"docker push myregistry.azurecr.io/myapp:latest",
			fmt.Sprintf("kubectl apply -n %s -f %s", ns, manifestDir),
		)
	}
	plan = append(plan,
		fmt.Sprintf("kubectl get pods -n %s", ns),
		fmt.Sprintf("kubectl get services -n %s", ns),
	)
	return plan, nil
}

// Tasks returns the checklist for the selected roles in role order.
func Tasks(stakeholders []string) []string {
	var tasks []string
	for _, r := range Roles {
		if slices.Contains(stakeholders, r.ID) {
			tasks = append(tasks, r.Tasks...)
		}
	}
	return tasks
}
