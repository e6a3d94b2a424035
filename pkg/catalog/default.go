package catalog

// OfficialGrid is the university's weekly grid. MWF blocks meet three times a week and TTH blocks twice.
// The CCC block is reserved for the common core curriculum and allows no teaching
var OfficialGrid = Grid{
	Families: []FamilySpec{
		{Name: "MWF", Days: []string{"Mon", "Wed", "Fri"}},
		{Name: "TTH", Days: []string{"Tue", "Thu"}},
	},
	Rows: []Row{
		{ID: "MWF_1_L", Family: "MWF", Start: "08:00", End: "08:55", Allowed: []string{"L"}},
		{ID: "MWF_2_L", Family: "MWF", Start: "09:05", End: "10:00", Allowed: []string{"L"}},
		{ID: "MWF_3_L", Family: "MWF", Start: "10:10", End: "11:05", Allowed: []string{"L"}},
		{ID: "MWF_CCC", Family: "MWF", Start: "11:45", End: "12:40"},
		{ID: "MWF_4_L", Family: "MWF", Start: "13:00", End: "13:55", Allowed: []string{"L"}},
		{ID: "MWF_5_L", Family: "MWF", Start: "14:05", End: "15:00", Allowed: []string{"L"}},
		{ID: "MWF_6_LAB", Family: "MWF", Start: "15:05", End: "17:00", Allowed: []string{"P"}},
		{ID: "MWF_8_T", Family: "MWF", Start: "17:10", End: "18:05", Allowed: []string{"T"}},
		{ID: "MWF_9_T", Family: "MWF", Start: "18:15", End: "19:10", Allowed: []string{"T"}},

		{ID: "TTH_1_L", Family: "TTH", Start: "08:00", End: "09:25", Allowed: []string{"L"}},
		{ID: "TTH_2_L", Family: "TTH", Start: "09:35", End: "11:00", Allowed: []string{"L"}},
		{ID: "TTH_3_L", Family: "TTH", Start: "11:10", End: "12:35", Allowed: []string{"L"}},
		{ID: "TTH_4_L", Family: "TTH", Start: "12:45", End: "14:10", Allowed: []string{"L", "P"}},
		{ID: "TTH_5_L", Family: "TTH", Start: "14:10", End: "15:35", Allowed: []string{"L"}},
		{ID: "TTH_6_L", Family: "TTH", Start: "15:45", End: "17:10", Allowed: []string{"L"}},
		{ID: "TTH_7_T", Family: "TTH", Start: "17:20", End: "18:15", Allowed: []string{"T"}},
		{ID: "TTH_8_T", Family: "TTH", Start: "18:25", End: "19:20", Allowed: []string{"T"}},
	},
}

func Default() *Catalog {
	catalog, err := New(OfficialGrid)
	if err != nil {
		panic(err)
	}
	return catalog
}
