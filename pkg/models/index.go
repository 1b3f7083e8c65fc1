package models

// ibex35 is the fixed index universe in display order.
var ibex35 = []Instrument{
	{Symbol: "ANA.MC", Name: "Acciona"},
	{Symbol: "ANE.MC", Name: "Acciona Energías"},
	{Symbol: "ACX.MC", Name: "Acerinox"},
	{Symbol: "ACS.MC", Name: "ACS"},
	{Symbol: "AENA.MC", Name: "Aena"},
	{Symbol: "AMS.MC", Name: "Amadeus"},
	{Symbol: "MTS.MC", Name: "ArcelorMittal"},
	{Symbol: "SAB.MC", Name: "Banco Sabadell"},
	{Symbol: "SAN.MC", Name: "Banco Santander"},
	{Symbol: "BKT.MC", Name: "Bankinter"},
	{Symbol: "BBVA.MC", Name: "BBVA"},
	{Symbol: "CABK.MC", Name: "CaixaBank"},
	{Symbol: "CLNX.MC", Name: "Cellnex"},
	{Symbol: "COL.MC", Name: "Colonial"},
	{Symbol: "ENG.MC", Name: "Enagás"},
	{Symbol: "ELE.MC", Name: "Endesa"},
	{Symbol: "FER.MC", Name: "Ferrovial"},
	{Symbol: "FDR.MC", Name: "Fluidra"},
	{Symbol: "GRF.MC", Name: "Grifols"},
	{Symbol: "IAG.MC", Name: "IAG"},
	{Symbol: "IBE.MC", Name: "Iberdrola"},
	{Symbol: "ITX.MC", Name: "Inditex"},
	{Symbol: "IDR.MC", Name: "Indra"},
	{Symbol: "LOG.MC", Name: "Logista"},
	{Symbol: "MAP.MC", Name: "Mapfre"},
	{Symbol: "MRL.MC", Name: "Merlin Properties"},
	{Symbol: "NTGY.MC", Name: "Naturgy"},
	{Symbol: "PUIG.MC", Name: "Puig"},
	{Symbol: "RED.MC", Name: "Redeia"},
	{Symbol: "REP.MC", Name: "Repsol"},
	{Symbol: "ROVI.MC", Name: "Rovi"},
	{Symbol: "SCYR.MC", Name: "Sacyr"},
	{Symbol: "SLR.MC", Name: "Solaria"},
	{Symbol: "TEF.MC", Name: "Telefónica"},
	{Symbol: "UNI.MC", Name: "Unicaja"},
}

// IBEX35 returns a copy of the index constituents in display order.
func IBEX35() []Instrument {
	out := make([]Instrument, len(ibex35))
	copy(out, ibex35)
	return out
}

// LookupInstrument finds an index constituent by symbol or display name.
func LookupInstrument(key string) (Instrument, bool) {
	for _, in := range ibex35 {
		if in.Symbol == key || in.Name == key {
			return in, true
		}
	}
	return Instrument{}, false
}
