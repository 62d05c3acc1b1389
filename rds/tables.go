package rds

// ProgramTypesRBDS are the North American program type names.
var ProgramTypesRBDS = [32]string{
	"No program type",
	"News",
	"Information",
	"Sports",
	"Talk",
	"Rock",
	"Classic Rock",
	"Adult Hits",
	"Soft Rock",
	"Top 40",
	"Country",
	"Oldies",
	"Soft",
	"Nostalgia",
	"Jazz",
	"Classical",
	"Rhythm and Blues",
	"Soft Rhythm and Blues",
	"Language",
	"Religious Music",
	"Religious Talk",
	"Personality",
	"Public",
	"College",
	"Unassigned 24",
	"Unassigned 25",
	"Unassigned 26",
	"Unassigned 27",
	"Unassigned 28",
	"Weather",
	"Emergency Test",
	"Emergency",
}

// ProgramTypesRDS are the European program type names.
var ProgramTypesRDS = [32]string{
	"No program type",
	"News",
	"Current Affairs",
	"Information",
	"Sport",
	"Education",
	"Drama",
	"Culture",
	"Science",
	"Varied",
	"Pop Music",
	"Rock Music",
	"M.O.R. Music",
	"Light Classical",
	"Serious Classical",
	"Other Music",
	"Weather",
	"Finance",
	"Children's Programs",
	"Social Affairs",
	"Religion",
	"Phone-In",
	"Travel",
	"Leisure",
	"Jazz Music",
	"Country Music",
	"National Music",
	"Oldies Music",
	"Folk Music",
	"Documentary",
	"Alarm test",
	"Alarm",
}

// GroupTypesA describe version A groups by type code.
var GroupTypesA = [16]string{
	"Basic Tuning and Switching Information only",
	"Program Item Number and Slow Labeling Codes only",
	"Radio Text only",
	"Applications Identification for ODA only",
	"Clock Time and Date only",
	"Transparent Data Channels (32 channels) or ODA",
	"In-House Applications of ODA",
	"Radio Paging of ODA",
	"Traffic Message Channel or ODA",
	"Emergency Warning System or ODA",
	"Program Type Name",
	"Open Data Applications",
	"Open Data Applications",
	"Enhanced Radio Paging or ODA",
	"Enhanced Other Networks Information Only",
	"Defined in RBDS only",
}

// GroupTypesB describe version B groups by type code.
var GroupTypesB = [16]string{
	"Basic Tuning and Switching Information only",
	"Program Item Number",
	"Radio Text only",
	"Open Data Applications",
	"Open Data Applications",
	"Transparent Data Channels (32 channels) or ODA",
	"In-House Applications of ODA",
	"Radio Paging of ODA",
	"Open Data Applications",
	"Open Data Applications",
	"Open Data Applications",
	"Open Data Applications",
	"Open Data Applications",
	"Open Data Applications",
	"Enhanced Other Networks Information Only",
	"Fast Switching Information only",
}
