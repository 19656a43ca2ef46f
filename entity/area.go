package entity

type Model string

const (
	ModelTec20 Model = "Tec20"
	ModelTec21 Model = "Tec21"
)

type Area struct {
	AID   string `bson:"aid" json:"aid"`
	Model Model  `bson:"model" json:"model"`
	Color string `bson:"color" json:"color"`
	Name  string `bson:"name" json:"name"`
}

// Areas is the static catalog of academic areas events are tagged with.
var Areas = map[string]Area{
	"ADI": {AID: "ADI", Model: ModelTec20, Color: "#159EDA", Name: "Arquitectura y Diseño"},
	"BIO": {AID: "BIO", Model: ModelTec20, Color: "#77A34C", Name: "Bioingeniería y Procesos Químicos"},
	"COM": {AID: "COM", Model: ModelTec20, Color: "#70338A", Name: "Comunicación y Producción Digital"},
	"ING": {AID: "ING", Model: ModelTec20, Color: "#237CC1", Name: "Ingeniería"},
	"TIE": {AID: "TIE", Model: ModelTec20, Color: "#024C7A", Name: "Tecnologías de Información y Electrónica"},
	"AMC": {AID: "AMC", Model: ModelTec21, Color: "#069E45", Name: "Ambiente Construido"},
	"CIS": {AID: "CIS", Model: ModelTec21, Color: "#C1181B", Name: "Ciencias Sociales"},
	"ESC": {AID: "ESC", Model: ModelTec21, Color: "#71338A", Name: "Estudios Creativos"},
	"NEG": {AID: "NEG", Model: ModelTec21, Color: "#003DA6", Name: "Negocios"},
	"SLD": {AID: "SLD", Model: ModelTec21, Color: "#69C0B2", Name: "Salud"},
}

func IsValidArea(aid string) bool {
	_, ok := Areas[aid]
	return ok
}
