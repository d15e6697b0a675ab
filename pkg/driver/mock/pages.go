package mock

import (
	"embed"
	"path"
)

// Public demo pages the bundled scenarios target.
const (
	CheckboxDemoURL = "https://www.lambdatest.com/selenium-playground/checkbox-demo"
	TableRecordsURL = "https://www.lambdatest.com/selenium-playground/table-records-filter-demo"
	TreeViewURL     = "https://www.grapecity.com/componentone/demos/aspnet/ControlExplorer/C1TreeView/CheckBox.aspx"
)

//go:embed fixtures/*.html
var fixtures embed.FS

var demoFiles = map[string]string{
	CheckboxDemoURL: "checkbox-demo.html",
	TableRecordsURL: "table-records.html",
	TreeViewURL:     "treeview.html",
}

// DemoPages returns offline replicas of the demo pages, keyed by URL.
func DemoPages() map[string]string {
	pages := make(map[string]string, len(demoFiles))
	for url, name := range demoFiles {
		data, err := fixtures.ReadFile(path.Join("fixtures", name))
		if err != nil {
			panic(err)
		}
		pages[url] = string(data)
	}
	return pages
}
