package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"fsbox/internal/patch"
	"fsbox/internal/paths"
)

// Default allow/confirm lists for built-in tools. Read-only tools are
// allowed out of the box; anything that mutates the filesystem requires
// confirmation until policy says otherwise.
var (
	DefaultAllowList = []string{
		"read_file", "read_text_file", "read_multiple_files", "list_directory",
		"list_directory_with_sizes", "directory_tree", "search_files",
		"get_file_info", "list_allowed_directories",
	}
	DefaultConfirmList = []string{
		"write_file", "edit_file", "create_directory", "move_file", "copy_file",
	}
)

// Services bundles the collaborators built-in tools depend on. The
// resolver carries the allow-list explicitly; there is no ambient state.
type Services struct {
	Resolver *paths.Resolver
	Engine   *patch.Engine
	Limits   Limits
	Logger   zerolog.Logger
}

// Permission describes the policy for a tool.
type Permission struct {
	Allowed             bool
	RequireConfirmation bool
}

// Policy configures which tools are allowed and which require confirmation.
type Policy struct {
	Allowed             map[string]bool
	RequireConfirmation map[string]bool
}

// ExecuteOptions controls how tool execution is handled.
type ExecuteOptions struct {
	// Force bypasses policy checks and confirmation requirements (use
	// only after explicit user consent).
	Force bool
}

// Registry holds all available tools with their implementations.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	permissions map[string]Permission
	logger      zerolog.Logger
}

// NewRegistry creates a tool registry with all built-in filesystem tools
// and the default policy.
func NewRegistry(svc Services) *Registry {
	return NewRegistryWithPolicy(svc, DefaultPolicy())
}

// NewRegistryWithPolicy creates a registry with the provided policy.
func NewRegistryWithPolicy(svc Services, policy Policy) *Registry {
	r := &Registry{
		tools:       make(map[string]Tool),
		permissions: make(map[string]Permission),
		logger:      svc.Logger,
	}

	registerBuiltInTools(r, svc)
	r.applyPolicy(DefaultPolicy())
	r.applyPolicy(policy)

	return r
}

// RegisterTool adds a new tool with its implementation to the registry.
func (r *Registry) RegisterTool(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	if _, ok := r.permissions[tool.Name()]; !ok {
		// Unknown tools default to blocked + confirmation.
		r.permissions[tool.Name()] = Permission{Allowed: false, RequireConfirmation: true}
	}
	return nil
}

// applyPolicy merges the provided policy into the registry permissions.
func (r *Registry) applyPolicy(policy Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.tools {
		perm, ok := r.permissions[name]
		if !ok {
			perm = Permission{Allowed: false, RequireConfirmation: true}
		}
		if policy.Allowed != nil {
			perm.Allowed = policy.Allowed[name]
		}
		if policy.RequireConfirmation != nil {
			perm.RequireConfirmation = policy.RequireConfirmation[name]
		}
		r.permissions[name] = perm
	}
}

// DefaultPolicy returns the default allow/confirm policy.
func DefaultPolicy() Policy {
	return PolicyFromLists(DefaultAllowList, DefaultConfirmList)
}

// AllowAllPolicy returns a policy that allows every built-in tool without
// confirmation. Intended for server deployments where the caller side
// handles approval.
func AllowAllPolicy() Policy {
	allow := append(append([]string{}, DefaultAllowList...), DefaultConfirmList...)
	return PolicyFromLists(allow, nil)
}

// PolicyFromLists builds a policy from allow/confirmation lists.
func PolicyFromLists(allow, confirm []string) Policy {
	allowMap := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowMap[name] = true
	}
	confirmMap := make(map[string]bool, len(confirm))
	for _, name := range confirm {
		confirmMap[name] = true
	}
	return Policy{
		Allowed:             allowMap,
		RequireConfirmation: confirmMap,
	}
}

// GetToolNames returns a sorted list of all tool names.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTools returns all registered tools sorted by name.
func (r *Registry) GetTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		list = append(list, tool)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Execute runs the specified tool with given arguments.
func (r *Registry) Execute(ctx context.Context, function string, args map[string]interface{}) *ToolResult {
	return r.ExecuteWithOptions(ctx, function, args, ExecuteOptions{})
}

// ExecuteWithOptions runs the tool using the provided options.
func (r *Registry) ExecuteWithOptions(ctx context.Context, function string, args map[string]interface{}, opts ExecuteOptions) *ToolResult {
	result := &ToolResult{
		Function: function,
	}

	tool, exists := r.getTool(function)
	if !exists {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, function)
		result.Result = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %v", function, r.GetToolNames())
		return result
	}

	if !opts.Force {
		perm := r.getPermission(function)
		if !perm.Allowed {
			result.Error = fmt.Errorf("%w: %s", ErrToolNotAllowed, function)
			result.Result = fmt.Sprintf("Tool '%s' is blocked by policy. Enable it to proceed.", function)
			return result
		}
		if perm.RequireConfirmation {
			result.Error = fmt.Errorf("%w: %s", ErrToolRequiresConfirmation, function)
			result.Result = fmt.Sprintf("Tool '%s' requires explicit approval before running.", function)
			return result
		}
	}

	if err := tool.Validate(args); err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		result.Result = fmt.Sprintf("Error: %v", err)
		return result
	}

	r.logger.Debug().Str("tool", function).Msg("executing tool")
	result.Result, result.Error = tool.Execute(ctx, args)
	if result.Error != nil {
		r.logger.Debug().Str("tool", function).Err(result.Error).Msg("tool failed")
	}
	return result
}

// SetAllowed toggles whether a tool is allowed.
func (r *Registry) SetAllowed(name string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.Allowed = allowed
	r.permissions[name] = perm
}

// SetRequireConfirmation toggles per-tool confirmation.
func (r *Registry) SetRequireConfirmation(name string, require bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	perm := r.permissions[name]
	perm.RequireConfirmation = require
	r.permissions[name] = perm
}

// GetPermission returns the current permission entry for a tool.
func (r *Registry) GetPermission(name string) Permission {
	return r.getPermission(name)
}

func (r *Registry) getTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) getPermission(name string) Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if perm, ok := r.permissions[name]; ok {
		return perm
	}
	// Default for unknown tools: blocked and requires confirmation.
	return Permission{Allowed: false, RequireConfirmation: true}
}
