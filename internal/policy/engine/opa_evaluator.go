package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"academia-identity/backend/internal/policy/repository"
)

const permissionsQuery = "data.academia.authz.permissions"

// DefaultPolicy grants permissions by role. An academia may replace it with its own module, which
// must declare package academia.authz and a permissions set.
const DefaultPolicy = `package academia.authz

student_permissions := {
	"profile:read",
	"profile:write",
	"classes:read",
	"graduations:read",
	"checkins:write",
}

instructor_permissions := student_permissions | {
	"classes:write",
	"graduations:write",
	"students:read",
	"checkins:read",
}

admin_permissions := instructor_permissions | {
	"academia:write",
	"payments:read",
	"payments:write",
	"users:write",
	"claims:write",
}

role_permissions := {
	"student": student_permissions,
	"instructor": instructor_permissions,
	"admin": admin_permissions,
}

permissions contains p if {
	some p in role_permissions[input.role]
}

permissions contains "academia:read" if {
	input.role in object.keys(role_permissions)
	input.academia_id != null
}
`

// OPAEvaluator evaluates permission policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	logger     *zap.Logger
	fallback   *ast.Compiler
}

// NewOPAEvaluator returns an OPA-based evaluator. policyRepo may be nil, in which case every
// academia uses DefaultPolicy.
func NewOPAEvaluator(policyRepo repository.Repository, logger *zap.Logger) (*OPAEvaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler, err := compile(DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("compile default policy: %w", err)
	}
	return &OPAEvaluator{policyRepo: policyRepo, logger: logger, fallback: compiler}, nil
}

// HealthCheck verifies that the in-process engine can evaluate the default policy.
// Does not call the policy repository.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	perms, err := e.eval(ctx, e.fallback, input("student", nil))
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(perms) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// Permissions evaluates the academia's enabled policy, or DefaultPolicy when it has none.
// A custom policy that fails to load, compile or evaluate is logged and DefaultPolicy is used.
func (e *OPAEvaluator) Permissions(ctx context.Context, role string, academiaID *string) ([]string, error) {
	compiler := e.fallback
	if custom := e.academiaCompiler(ctx, academiaID); custom != nil {
		perms, err := e.eval(ctx, custom, input(role, academiaID))
		if err == nil {
			return perms, nil
		}
		e.logger.Warn("academia policy evaluation failed, using default policy",
			zap.String("academia_id", *academiaID), zap.Error(err))
	}
	return e.eval(ctx, compiler, input(role, academiaID))
}

func (e *OPAEvaluator) academiaCompiler(ctx context.Context, academiaID *string) *ast.Compiler {
	if e.policyRepo == nil || academiaID == nil || *academiaID == "" {
		return nil
	}
	p, err := e.policyRepo.GetByAcademia(ctx, *academiaID)
	if err != nil {
		e.logger.Warn("failed to load academia policy", zap.String("academia_id", *academiaID), zap.Error(err))
		return nil
	}
	if p == nil || !p.Enabled || p.Rules == "" {
		return nil
	}
	compiler, err := compile(p.Rules)
	if err != nil {
		e.logger.Warn("academia policy does not compile", zap.String("academia_id", *academiaID), zap.Error(err))
		return nil
	}
	return compiler
}

func (e *OPAEvaluator) eval(ctx context.Context, compiler *ast.Compiler, in map[string]interface{}) ([]string, error) {
	q := rego.New(
		rego.Query(permissionsQuery),
		rego.Compiler(compiler),
		rego.Input(in),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, err
	}
	perms := []string{}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return perms, nil
	}
	values, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("permissions is %T, want a set", rs[0].Expressions[0].Value)
	}
	for _, v := range values {
		if s, ok := v.(string); ok {
			perms = append(perms, s)
		}
	}
	slices.Sort(perms)
	return slices.Compact(perms), nil
}

func compile(rules string) (*ast.Compiler, error) {
	return ast.CompileModules(map[string]string{"policy_0.rego": rules})
}

func input(role string, academiaID *string) map[string]interface{} {
	in := map[string]interface{}{
		"role":        role,
		"academia_id": nil,
	}
	if academiaID != nil {
		in["academia_id"] = *academiaID
	}
	return in
}
