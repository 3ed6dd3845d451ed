package universe

//GliderGunTemplate is the name of the built-in glider gun seeding template
const GliderGunTemplate = "GriderGun"

//Coord addresses one cell by row and column
type Coord struct {
	Row uint32
	Col uint32
}

//Template represent the seeding template which can used to settle the universe with predefined data
type Template struct {
	Name        string  //template name
	Descr       string  //template descr
	Coordinates []Coord //alive cells as row, col pairs
}

var gliderGun = Template{
	Name:  GliderGunTemplate,
	Descr: "glider gun emitting a glider every 30 generations, with a few companion patterns",
	Coordinates: []Coord{
		{2, 35}, {3, 35}, {3, 37}, {4, 1}, {4, 23}, {4, 25}, {4, 35}, {4, 36},
		{5, 1}, {5, 3}, {5, 23}, {5, 24}, {6, 1}, {6, 2}, {6, 9}, {6, 11},
		{6, 24}, {6, 37}, {6, 38}, {6, 39}, {7, 9}, {7, 10}, {7, 37}, {8, 3},
		{8, 4}, {8, 5}, {8, 10}, {8, 24}, {8, 25}, {8, 38}, {9, 3}, {9, 24},
		{9, 26}, {9, 30}, {10, 4}, {10, 10}, {10, 11}, {10, 24}, {10, 29}, {10, 30},
		{11, 10}, {11, 12}, {11, 16}, {11, 29}, {11, 31}, {12, 10}, {12, 15}, {12, 16},
		{12, 21}, {12, 22}, {13, 15}, {13, 17}, {13, 21}, {13, 23}, {14, 21}, {15, 40},
		{15, 41}, {16, 40}, {16, 42}, {17, 40}, {20, 29}, {20, 30}, {20, 31}, {21, 29},
		{22, 30}, {108, 122}, {108, 123}, {109, 122}, {109, 124}, {110, 124}, {111, 124}, {111, 125},
	},
}

//builtinTemplates returns the templates every new universe knows about
func builtinTemplates() map[string]Template {
	return map[string]Template{
		gliderGun.Name: gliderGun,
	}
}
