package mcpserver

// NodeTypesContract describes the node vocabulary that LLM consumers should
// use when adding nodes to a map.
const NodeTypesContract = `# Mind Map Node Types

Every node has a ` + "`type`" + `, a ` + "`label`" + ` and type-specific attributes kept in its
` + "`data`" + ` bag. Unknown types are stored as ` + "`note`" + `.

| type      | default label | attributes                               | diagram shape |
|-----------|---------------|------------------------------------------|---------------|
| note      | Idea          | desc                                     | rectangle     |
| decision  | Decision?     | criteria                                 | rhombus       |
| milestone | Milestone     | date                                     | circle        |
| service   | Service       | method, base_url                         | rectangle     |
| kpi       | Indicator     | value (number, shown clamped to 0..100)  | rectangle     |
| swimlane  | Swimlane      | (none)                                   | rectangle     |
| idea      | Idea          | (none)                                   | rectangle     |
| topic     | Topic         | (none)                                   | rectangle     |
| task      | Task          | status: todo, doing, done                | rectangle     |
| risk      | Risk          | severity: L, M, H                        | rectangle     |
| persona   | Persona       | role, org                                | rectangle     |

## Rules

1. Edges are directed from ` + "`source_id`" + ` to ` + "`target_id`" + `. Self-loops and duplicates are allowed.
2. Labels are short phrases; keep them under 60 characters.
3. Removing a node does not remove its edges. Remove dangling edges explicitly.
4. A published map stays published; saving it again keeps its project.
`
