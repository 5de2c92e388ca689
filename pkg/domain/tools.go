package domain

// Names of the builtin graph tools. Read tools inspect the canonical store;
// constructive tools produce results the executor translates into patch ops.
const (
	ToolGetGraph      = "get_graph"
	ToolInspectNode   = "inspect_node"
	ToolListInstances = "list_instances"

	ToolCreateNodeInstance = "create_node_instance"
	ToolDeleteNodeInstance = "delete_node_instance"
	ToolConnectNodes       = "connect_nodes"
	ToolSetNodeProperty    = "set_node_property"
)
