package policy

import (
	"fmt"
	"strings"
)

// buildPrompt renders the review request into the reviewer prompt. The
// prompt encodes the data-isolation policy: trainer code may read from
// provider folders and keep derived values in variables, but may not
// write back into them, visualize data sourced from them, or delete
// their contents. Reads outside provider folders are unrestricted.
func buildPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("You are the code checker of a federated training platform. ")
	sb.WriteString("Data providers contribute datasets that a model trainer may use for training ")
	sb.WriteString("without breaching privacy. You receive every code cell of the trainer's notebook ")
	sb.WriteString("and must evaluate exactly one target cell. Respond with \"Approved\" or ")
	sb.WriteString("\"Rejected: <reason>\" for the target cell only.\n\n")

	if len(req.DatasetFolders) > 0 {
		fmt.Fprintf(&sb, "Data provider folders: %s\n\n", strings.Join(req.DatasetFolders, ", "))
	} else {
		sb.WriteString("Data provider folders: none\n\n")
	}

	sb.WriteString(`Rules:
1. Reading files outside the provider folders is unrestricted.
2. For files inside provider folders the trainer may:
   - read them and store the data in variables,
   - process or analyze data held in variables.
3. Disallowed for provider folders:
   - saving or writing data back into a provider folder,
   - visualizing or plotting data read from a provider folder,
   - deleting or renaming provider folder contents.

Examples:

Allowed - reading from a provider folder into a variable:
` + "```python\nimport pandas as pd\ndf = pd.read_csv('provider-folder/train.csv')\nsummary = df.describe()\nprint(summary)\n```" + `

Disallowed - writing back into a provider folder:
` + "```python\ndf.to_csv('provider-folder/out.csv')\n```" + `

Disallowed - plotting provider data:
` + "```python\nimport matplotlib.pyplot as plt\nplt.plot(df['column'])\nplt.show()\n```" + `

Notebook context:
`)

	for i, cell := range req.Cells {
		fmt.Fprintf(&sb, "\nCell %d (%s):\n```python\n%s\n```\n", i+1, cell.ID, cell.Code)
	}

	fmt.Fprintf(&sb, "\nTarget cell (%s):\n```python\n%s\n```\n", req.Target.ID, req.Target.Code)

	sb.WriteString(`
Respond with exactly one of:
1. Approved
2. Rejected: <reason>
`)

	return sb.String()
}
