package mcpserver

// NoteFormatContract describes the note fields and the export file format
// that LLM consumers should follow when creating or importing notes.
const NoteFormatContract = `# Stickies Note Format

A note is a small piece of code or text with an optional title and a
syntax language.

## Fields

- ` + "`id`" + ` UUID, assigned by Stickies. Unique within the collection.
- ` + "`title`" + ` optional. Notes without a title are listed as "Untitled Note".
- ` + "`text`" + ` the body. New notes without text read "NEW NOTE".
- ` + "`language`" + ` one of Text, Agda, Cabal, Cypher, Haskell, SQLite, Swift.
  Names are matched without regard to case.

## Export files

Exports and backups are UTF-8 JSON arrays of notes, pretty-printed, with the
extension ` + "`.stickies`" + `:

` + "```" + `json
[
  {
    "id": "5F0C6A0E-8D8C-4A52-9C5B-1A0E7C1A9F11",
    "title": "Fibonacci",
    "text": [{"text": "fibs = 0 : 1 : zipWith (+) fibs (tail fibs)"}],
    "language": {"kind": 4}
  }
]
` + "```" + `

Backups in the backup folder are named
` + "`backup_YYYY-MM-DD_HH-MM-SS.stickies`" + ` in local time.

## Importing

- ` + "`.stickies`" + ` and ` + "`.json`" + ` files must hold a note array as above.
- ` + "`.md`" + `, ` + "`.markdown`" + ` and ` + "`.txt`" + ` files become a single note. YAML
  frontmatter may set ` + "`title`" + ` and ` + "`language`" + `.
- Duplicates are detected by id. Policies: ` + "`skip`" + ` drops incoming notes whose id
  exists, ` + "`add`" + ` imports them under a fresh id, ` + "`replace`" + ` swaps the whole
  collection, ` + "`cancel`" + ` changes nothing.
`
