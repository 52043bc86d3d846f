package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/simforge/internal/extract"
	"github.com/pders01/simforge/internal/models"
	"github.com/pders01/simforge/internal/project"
	"github.com/pders01/simforge/internal/testutil"
)

func newTestImporter(t *testing.T) (*Importer, *testutil.Tree) {
	t.Helper()
	return newImporterOn(t, testutil.NewMemTree(t))
}

func newImporterOn(t *testing.T, tree *testutil.Tree) (*Importer, *testutil.Tree) {
	t.Helper()
	tree.SeedProject("Template")
	store := project.NewStore(tree.Fs, tree.Path("Simulations"))
	return New(store, tree.Path("Template"), nil), tree
}

func TestDestination(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"PrefabMaterialCreator.cs", "Assets/Editor/PrefabMaterialCreator.cs"},
		{"EColiComponent.cs", "Assets/Scripts/Components/EColiComponent.cs"},
		{"EColiSystem.cs", "Assets/Scripts/Systems/EColiSystem.cs"},
		{"CreatePrefabsOnClick.cs", "Assets/Scripts/General/CreatePrefabsOnClick.cs"},
		{"Helpers.cs", "Assets/Scripts/General/Helpers.cs"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := Destination(models.Classify(tt.filename), tt.filename)
			// Pure function of the filename.
			again := Destination(models.Classify(tt.filename), tt.filename)
			assert.Equal(t, tt.want, strings.ReplaceAll(got, "\\", "/"))
			assert.Equal(t, got, again)
		})
	}
}

func TestImportExampleResponse(t *testing.T) {
	im, tree := newTestImporter(t)
	artifacts := extract.Process(`1.PrefabMaterialCreator.cs{Debug.Log("a");}2.EColiComponent.cs{public struct EColiComponent{}}`)

	report, err := im.Import(artifacts, "EColi")
	require.NoError(t, err)
	assert.False(t, report.Reused)
	assert.Len(t, report.Written, 2)

	editor := tree.ReadFile("Simulations/EColi/Assets/Editor/PrefabMaterialCreator.cs")
	assert.True(t, strings.HasPrefix(editor, "#if UNITY_EDITOR\nusing UnityEngine;\nusing UnityEditor;\nusing System.IO;\n\n"))
	assert.True(t, strings.HasSuffix(editor, "\n#endif\n"))
	assert.Contains(t, editor, `Debug.Log("a");`)

	component := tree.ReadFile("Simulations/EColi/Assets/Scripts/Components/EColiComponent.cs")
	assert.Equal(t, "public struct EColiComponent\n{\n}\n", component)

	// The template was copied around the imported files.
	assert.True(t, tree.FileExists("Simulations/EColi/ProjectSettings/ProjectVersion.txt"))
	assert.True(t, tree.FileExists("Simulations/EColi/Packages/manifest.json"))
	assert.False(t, tree.FileExists("Simulations/EColi/Assets/Scripts/Systems/GeneralSystem.cs"))
}

func TestImportSystemSplice(t *testing.T) {
	im, tree := newTestImporter(t)
	artifacts := models.Artifacts{{
		Filename: "EColiSystem.cs",
		Raw:      "divide(e);",
		Role:     models.RoleSystem,
	}}

	_, err := im.Import(artifacts, "EColi")
	require.NoError(t, err)

	got := tree.ReadFile("Simulations/EColi/Assets/Scripts/Systems/EColiSystem.cs")
	assert.Contains(t, got, "public partial class EColiSystem : SystemBase")
	assert.Contains(t, got, "in EColiComponent growth")
	assert.NotContains(t, got, "GeneralSystem")
	assert.NotContains(t, got, "GeneralComponent")

	lines := strings.Split(got, "\n")
	idx := -1
	for i, line := range lines {
		if strings.Contains(line, "math.lerp(initialScale, maxScale, t); }") {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0, "anchor line missing")
	assert.Equal(t, "", lines[idx+1])
	assert.Equal(t, "divide(e);", lines[idx+2])
	assert.Equal(t, 1, testutil.CountLines(got, "divide(e);"))
	// Everything after the splice is still there.
	assert.Equal(t, "        ).ScheduleParallel();", lines[idx+3])
}

func TestImportDriverSplice(t *testing.T) {
	im, tree := newTestImporter(t)
	artifacts := models.Artifacts{{
		Filename: "CreatePrefabsOnClick.cs",
		Raw:      "void Update() { }",
		Role:     models.RoleGeneralDriver,
	}}

	report, err := im.Import(artifacts, "EColi")
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)

	got := tree.ReadFile("Simulations/EColi/Assets/Scripts/General/CreatePrefabsOnClick.cs")
	before, after, found := strings.Cut(got, "void Update() { }")
	require.True(t, found)
	assert.Contains(t, before, "Resources.LoadAll<GameObject>")
	assert.Contains(t, after, "}")
}

func TestImportAnchorMissingFallsBack(t *testing.T) {
	im, tree := newTestImporter(t)
	tree.CreateFile("Template/Assets/Scripts/Systems/GeneralSystem.cs", "public partial class GeneralSystem : SystemBase {}\n")

	artifacts := models.Artifacts{{Filename: "EColiSystem.cs", Raw: "raw();", Role: models.RoleSystem}}

	report, err := im.Import(artifacts, "EColi")
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "anchor")
	assert.Equal(t, "raw();", tree.ReadFile("Simulations/EColi/Assets/Scripts/Systems/EColiSystem.cs"))
}

func TestImportOtherRoleWarns(t *testing.T) {
	im, tree := newTestImporter(t)

	report, err := im.Import(models.Artifacts{{Filename: "Helpers.cs", Raw: "x;", Role: models.RoleOther}}, "EColi")
	require.NoError(t, err)
	assert.Len(t, report.Warnings, 1)
	assert.True(t, tree.FileExists("Simulations/EColi/Assets/Scripts/General/Helpers.cs"))
}

func TestImportReusesExistingProject(t *testing.T) {
	im, tree := newTestImporter(t)
	tree.SeedProject("Simulations/EColi")
	tree.CreateFile("Simulations/EColi/Assets/keep.txt", "keep")

	report, err := im.Import(models.Artifacts{{Filename: "AComponent.cs", Raw: "a", Role: models.RoleComponent}}, "EColi")
	require.NoError(t, err)
	assert.True(t, report.Reused)
	assert.Equal(t, "keep", tree.ReadFile("Simulations/EColi/Assets/keep.txt"))
}

func TestImportFailures(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		tree := testutil.NewMemTree(t)
		im := New(project.NewStore(tree.Fs, tree.Path("Simulations")), tree.Path("Template"), nil)

		_, err := im.Import(models.Artifacts{{Filename: "A.cs", Raw: "a"}}, "EColi")
		assert.True(t, models.IsKind(err, models.KindTemplate))
	})

	t.Run("name taken by file", func(t *testing.T) {
		im, tree := newTestImporter(t)
		tree.CreateFile("Simulations/EColi", "file")

		_, err := im.Import(models.Artifacts{{Filename: "A.cs", Raw: "a"}}, "EColi")
		assert.True(t, models.IsKind(err, models.KindTemplate))
	})

	t.Run("invalid name", func(t *testing.T) {
		im, _ := newTestImporter(t)

		_, err := im.Import(models.Artifacts{{Filename: "A.cs", Raw: "a"}}, "a:b")
		assert.True(t, models.IsKind(err, models.KindTemplate))
	})

	t.Run("nothing to import", func(t *testing.T) {
		im, _ := newTestImporter(t)

		_, err := im.Import(nil, "EColi")
		assert.True(t, models.IsKind(err, models.KindExtraction))
	})

	t.Run("every write fails", func(t *testing.T) {
		im, tree := newImporterOn(t, testutil.NewOsTree(t))
		tree.SeedProject("Simulations/EColi")
		tree.Mkdir("Simulations/EColi/Assets/Scripts/Components/AComponent.cs/blocker")

		report, err := im.Import(models.Artifacts{{Filename: "AComponent.cs", Raw: "a", Role: models.RoleComponent}}, "EColi")
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.KindTemplate))
		assert.Empty(t, report.Written)
	})
}

func TestImportPartialSuccess(t *testing.T) {
	im, tree := newImporterOn(t, testutil.NewOsTree(t))
	// A directory in place of the target file makes that one write fail.
	tree.Mkdir("Simulations/EColi/Assets/Scripts/Components/BComponent.cs/blocker")
	tree.SeedProject("Simulations/EColi")

	artifacts := models.Artifacts{
		{Filename: "AComponent.cs", Raw: "a", Role: models.RoleComponent},
		{Filename: "BComponent.cs", Raw: "b", Role: models.RoleComponent},
	}

	report, err := im.Import(artifacts, "EColi")
	require.NoError(t, err)
	assert.Equal(t, []string{"Assets/Scripts/Components/AComponent.cs"}, report.Written)
	assert.NotEmpty(t, report.Warnings)
}

func TestSplice(t *testing.T) {
	text := "a\n  transform.Scale = math.lerp( initialScale, maxScale, t ); }\nb"

	out, ok := systemAnchor.splice(text, "X;\n")
	require.True(t, ok)
	assert.Equal(t, "a\n  transform.Scale = math.lerp( initialScale, maxScale, t ); }\n\nX;\nb", out)

	_, ok = driverAnchor.splice(text, "X;")
	assert.False(t, ok)
}
