package mcpserver

// TabFormatContract describes the ASCII tablature accepted by import_tab.
const TabFormatContract = `# caged Tab Import Format

Tabs load into a session's edit layer. Every position that carries a fret
number becomes a visible note; the rest of the board is cleared.

## Structure

` + "```" + `text
---
title: Cmaj7 grip       # OPTIONAL
key: C                  # OPTIONAL - sets the session key before import
quality: Maj7           # OPTIONAL - Maj7, Dom7, Min7, Min7b5, Dim7
tuning: Standard        # OPTIONAL - Standard, DADGAD, Open D, Drop D
shape: C                # OPTIONAL - C, A, G, E or D
---
e|-----0-----|
B|-----0-----|
G|-----0-----|
D|-----2-----|
A|--3--------|
E|-----------|
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present the ` + "`" + `---` + "`" + ` fences must come first.
2. **One line per string, highest string first**, exactly as many lines as the
   tuning has strings. Consecutive tab lines form one block; several blocks
   may follow each other.
3. **Fret numbers** may have two digits (` + "`" + `12` + "`" + `). Technique marks
   (` + "`" + `h p b r / \ ~ x` + "`" + `) are ignored.
4. Frets beyond the board, or a block with the wrong number of lines, reject
   the whole import and leave the session unchanged.
5. A fret that sounds the key's root becomes a root and is drawn as "R".
`
