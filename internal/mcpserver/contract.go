package mcpserver

// CommandVocabulary documents the per-category CEC command names that
// send_cec_command accepts.
const CommandVocabulary = `# Crossbar CEC Command Vocabulary

Every command dispatched through ` + "`send_cec_command`" + ` must name a category and
a command from that category's vocabulary.

## Categories

### power
Targets: the scene's declared power lists, or (when a scene declares none)
the resolved navigation and volume targets together.

- ` + "`power_on`" + `
- ` + "`power_off`" + `

### navigation
Target: the resolved navigation device (usually the source routed to the
primary display, unless pinned or overridden by a scene).

- ` + "`up`" + `, ` + "`down`" + `, ` + "`left`" + `, ` + "`right`" + `
- ` + "`select`" + `, ` + "`back`" + `, ` + "`menu`" + `, ` + "`home`" + `

### playback
Target: the resolved playback device (follows navigation unless configured
separately).

- ` + "`play`" + `, ` + "`pause`" + `, ` + "`stop`" + `
- ` + "`rewind`" + `, ` + "`fast_forward`" + `
- ` + "`next`" + `, ` + "`previous`" + `

### volume
Target: the first ARC-enabled output, else the primary output, unless
pinned or overridden by a scene.

- ` + "`volume_up`" + `, ` + "`volume_down`" + `, ` + "`mute`" + `

## Target references

Ports are encoded ` + "`input_<n>`" + ` / ` + "`output_<n>`" + ` with 1-based numbers within
the matrix dimensions (8x8 by default). Commands sent to a category with no
resolved target return "no target configured" rather than failing.
`
