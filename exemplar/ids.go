package exemplar

// PropertyID identifies a property inside an exemplar.
type PropertyID uint32

// Well-known property ids.
const (
	ExemplarType               PropertyID = 0x00000010
	ExemplarName               PropertyID = 0x00000020
	ExemplarID                 PropertyID = 0x00000021
	OccupantSize               PropertyID = 0x27812810
	BuildingpropFamily         PropertyID = 0x27812870
	OccupantGroups             PropertyID = 0xaa1dd396
	LotConfigPropertySize      PropertyID = 0x88edc790
	LotConfigPropertyLotObject PropertyID = 0x88edc900
)

// Values of the ExemplarType property.
const (
	TypeBuildings         uint32 = 0x02
	TypeLotConfigurations uint32 = 0x10
	TypeProp              uint32 = 0x1e
)

// LotConfigGroup is the group id used for lot configuration exemplars.
const LotConfigGroup uint32 = 0xa8fbd372

var propertyNames = map[PropertyID]string{
	ExemplarType:               "ExemplarType",
	ExemplarName:               "ExemplarName",
	ExemplarID:                 "ExemplarID",
	OccupantSize:               "OccupantSize",
	BuildingpropFamily:         "BuildingpropFamily",
	OccupantGroups:             "OccupantGroups",
	LotConfigPropertySize:      "LotConfigPropertySize",
	LotConfigPropertyLotObject: "LotConfigPropertyLotObject",
}

// Name returns the symbolic name of a well-known id, or "".
func (id PropertyID) Name() string {
	return propertyNames[id]
}
